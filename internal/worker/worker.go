package worker

import (
	"context"
	"log/slog"
	"sync"
)

type ProcessFunc[T any] func(ctx context.Context, job T) error

type WorkerPool[T any] struct {
	name       string
	numWorkers int
	jobs       chan T
	processor  ProcessFunc[T]
	wg         sync.WaitGroup

	done     chan struct{}
	stopOnce sync.Once
}

func NewWorkerPool[T any](name string, numWorkers int, bufferSize int, processor ProcessFunc[T]) *WorkerPool[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &WorkerPool[T]{
		name:       name,
		numWorkers: numWorkers,
		jobs:       make(chan T, bufferSize),
		processor:  processor,
		done:       make(chan struct{}),
	}
}

// Start launches the workers. Jobs keep ctx's values but not its cancellation:
// queued work runs to completion and only Stop ends the workers.
func (wp *WorkerPool[T]) Start(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := 1; i <= wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool[T]) worker(ctx context.Context, id int) {
	defer wp.wg.Done()

	for {
		select {
		case job := <-wp.jobs:
			wp.process(ctx, id, job)
		case <-wp.done:
			for {
				select {
				case job := <-wp.jobs:
					wp.process(ctx, id, job)
				default:
					return
				}
			}
		}
	}
}

func (wp *WorkerPool[T]) process(ctx context.Context, id int, job T) {
	if err := wp.processor(ctx, job); err != nil {
		slog.Error("job failed", "pool", wp.name, "worker", id, "error", err)
	}
}

// Submit queues a job, blocking while the buffer is full. It returns false if ctx is
// done first or the pool is stopped.
func (wp *WorkerPool[T]) Submit(ctx context.Context, job T) bool {
	select {
	case <-wp.done:
		return false
	default:
	}

	select {
	case wp.jobs <- job:
		return true
	case <-wp.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop rejects new jobs, waits for queued ones to be processed and for the workers to exit.
func (wp *WorkerPool[T]) Stop() {
	wp.stopOnce.Do(func() { close(wp.done) })
	wp.wg.Wait()
}
