package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/mr1hm/go-evac-shelters/internal/config"
	internalgrpc "github.com/mr1hm/go-evac-shelters/internal/grpc"
	"github.com/mr1hm/go-evac-shelters/internal/models"
	"github.com/mr1hm/go-evac-shelters/internal/observability"
	"github.com/mr1hm/go-evac-shelters/internal/repository"
	"github.com/mr1hm/go-evac-shelters/internal/source"
	"github.com/mr1hm/go-evac-shelters/internal/worker"
)

var (
	// ErrSourceUnavailable is returned when the source could not be read. The
	// snapshot returned alongside it is the one still being served.
	ErrSourceUnavailable = errors.New("shelter source unavailable")
	// ErrSuperseded is returned when a newer refresh published first.
	ErrSuperseded = errors.New("shelter load superseded by a newer refresh")
)

// Loader produces one validated load per call.
type Loader interface {
	Load(ctx context.Context) (repository.Report, error)
}

// Manager owns the published shelter snapshot. Refreshes may overlap; the
// snapshot only ever moves forward in generation.
type Manager struct {
	cfg         *config.Config
	loader      Loader
	store       repository.ShelterStore
	broadcaster *internalgrpc.Broadcaster
	metrics     *observability.Metrics
	clock       clockwork.Clock
	pool        *worker.WorkerPool[*models.Snapshot]
	wg          sync.WaitGroup

	generation atomic.Uint64
	mu         sync.RWMutex
	current    *models.Snapshot
}

// NewManager wires a manager. store, broadcaster and metrics may be nil.
func NewManager(cfg *config.Config, loader Loader, store repository.ShelterStore, broadcaster *internalgrpc.Broadcaster, metrics *observability.Metrics) *Manager {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	return &Manager{
		cfg:         cfg,
		loader:      loader,
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
		clock:       clockwork.NewRealClock(),
	}
}

// WithClock replaces the clock used for polling and timestamps. Call before Start.
func (m *Manager) WithClock(clock clockwork.Clock) *Manager {
	m.clock = clock
	return m
}

// Start performs the initial load, then starts the persist pool, the poller
// and the file watcher as configured.
func (m *Manager) Start(ctx context.Context) {
	if m.store != nil {
		stored, err := m.store.Generation(ctx)
		if err != nil {
			slog.Error("error reading stored snapshot generation", "error", err)
		} else {
			m.resumeFrom(stored)
		}

		m.pool = worker.NewWorkerPool("persist", m.cfg.Worker.Count, m.cfg.Worker.BufferSize, m.persist)
		m.pool.Start(ctx)
	}

	m.refreshAndLog(ctx, "initial")

	if interval := m.cfg.Shelters.RefreshInterval; interval > 0 {
		m.wg.Add(1)
		go m.runPoller(ctx, interval)
	}

	if path, ok := m.cfg.Shelters.FilePath(); ok && m.cfg.Shelters.Watch {
		watcher, err := source.NewFileWatcher(path)
		if err != nil {
			slog.Error("error starting shelter file watcher", "path", path, "error", err)
		} else {
			m.wg.Add(1)
			go func() {
				defer m.wg.Done()
				slog.Info("watching shelter file", "path", path)
				watcher.Run(ctx, func() { m.refreshAndLog(ctx, "watch") })
			}()
		}
	}
}

// resumeFrom raises the generation counter to at least gen so loads made by this
// process supersede snapshots persisted by earlier ones.
func (m *Manager) resumeFrom(gen uint64) {
	for {
		cur := m.generation.Load()
		if cur >= gen || m.generation.CompareAndSwap(cur, gen) {
			return
		}
	}
}

func (m *Manager) runPoller(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()
	slog.Info("starting shelter poller", "interval", interval)

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("shelter poller shutting down")
			return
		case <-ticker.Chan():
			m.refreshAndLog(ctx, "poll")
		}
	}
}

func (m *Manager) refreshAndLog(ctx context.Context, trigger string) {
	snap, err := m.Refresh(ctx)
	switch {
	case err == nil:
		slog.Debug("shelter refresh complete", "trigger", trigger, "generation", snap.Generation)
	case errors.Is(err, ErrSuperseded), errors.Is(err, context.Canceled):
		slog.Debug("shelter refresh discarded", "trigger", trigger, "error", err)
	default:
		slog.Warn("shelter refresh failed", "trigger", trigger, "error", err)
	}
}

// Refresh loads the source and publishes the result. Each call takes a
// generation when it starts; its result is dropped if a newer generation has
// already been published. A cancelled call publishes nothing.
func (m *Manager) Refresh(ctx context.Context) (*models.Snapshot, error) {
	gen := m.generation.Add(1)
	start := m.clock.Now()

	report, err := m.loader.Load(ctx)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		m.metrics.Loads.WithLabelValues("canceled").Inc()
		return nil, err
	}

	for reason, n := range report.Rejected {
		m.metrics.RecordsRejected.WithLabelValues(string(reason)).Add(float64(n))
	}

	if report.SourceErr != nil {
		m.metrics.Loads.WithLabelValues("source_error").Inc()
		if cur := m.Snapshot(); cur != nil {
			slog.Warn("keeping previous shelter snapshot", "generation", cur.Generation, "error", report.SourceErr)
			return cur, fmt.Errorf("%w: %v", ErrSourceUnavailable, report.SourceErr)
		}
	}

	snap := &models.Snapshot{
		Generation: gen,
		Source:     report.Source,
		LoadedAt:   m.clock.Now(),
		Shelters:   report.Shelters,
	}

	if !m.publish(snap) {
		m.metrics.Loads.WithLabelValues("superseded").Inc()
		return m.Snapshot(), ErrSuperseded
	}

	if report.SourceErr == nil {
		m.metrics.Loads.WithLabelValues("published").Inc()
	}
	m.metrics.LoadDuration.Observe(m.clock.Since(start).Seconds())

	slog.Info("shelter snapshot published",
		"generation", snap.Generation,
		"source", snap.Source,
		"shelters", len(snap.Shelters),
		"rejected", report.RejectedTotal(),
	)

	m.enqueuePersist(ctx, snap)

	if report.SourceErr != nil {
		return snap, fmt.Errorf("%w: %v", ErrSourceUnavailable, report.SourceErr)
	}
	return snap, nil
}

// publish installs snap unless a newer generation is already current.
// Broadcasting under the lock keeps subscribers in generation order.
func (m *Manager) publish(snap *models.Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current != nil && m.current.Generation > snap.Generation {
		return false
	}
	m.current = snap

	m.metrics.SheltersLoaded.Set(float64(len(snap.Shelters)))
	m.metrics.SnapshotGeneration.Set(float64(snap.Generation))
	if m.broadcaster != nil {
		m.broadcaster.Broadcast(snap)
	}
	return true
}

func (m *Manager) enqueuePersist(ctx context.Context, snap *models.Snapshot) {
	if m.store == nil {
		return
	}
	if m.pool == nil {
		if err := m.persist(ctx, snap); err != nil {
			slog.Error("error persisting shelter snapshot", "error", err)
		}
		return
	}
	if !m.pool.Submit(ctx, snap) {
		slog.Warn("shelter snapshot not persisted, pool stopped", "generation", snap.Generation)
	}
}

func (m *Manager) persist(ctx context.Context, snap *models.Snapshot) error {
	written, err := m.store.ReplaceSnapshot(ctx, snap)
	if err != nil {
		m.metrics.PersistErrors.Inc()
		return fmt.Errorf("error persisting snapshot %d: %w", snap.Generation, err)
	}
	if !written {
		slog.Debug("stale shelter snapshot not persisted", "generation", snap.Generation)
		return nil
	}
	slog.Debug("shelter snapshot persisted", "generation", snap.Generation, "shelters", len(snap.Shelters))
	return nil
}

// Snapshot returns the current snapshot, or nil before the first publish.
func (m *Manager) Snapshot() *models.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) Stop() {
	m.wg.Wait()
	if m.pool != nil {
		m.pool.Stop()
	}
	slog.Info("shelter manager stopped")
}
