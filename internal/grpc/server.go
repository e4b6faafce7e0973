package grpc

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/mr1hm/go-evac-shelters/internal/classifier"
	"github.com/mr1hm/go-evac-shelters/internal/models"
	"github.com/mr1hm/go-evac-shelters/internal/observability"
)

// Catalog exposes the currently published snapshot.
type Catalog interface {
	Snapshot() *models.Snapshot
}

type Server struct {
	catalog     Catalog
	broadcaster *Broadcaster
	metrics     *observability.Metrics
	grpcServer  *grpc.Server
}

func NewServer(catalog Catalog, broadcaster *Broadcaster, metrics *observability.Metrics) *Server {
	if metrics == nil {
		metrics = observability.NewMetricsForTesting()
	}
	s := &Server{
		catalog:     catalog,
		broadcaster: broadcaster,
		metrics:     metrics,
		grpcServer:  grpc.NewServer(),
	}
	RegisterShelterServiceServer(s.grpcServer, s)
	return s
}

func (s *Server) Start(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	slog.Info("gRPC server listening", "addr", addr)
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	return s.grpcServer.Serve(lis)
}

func (s *Server) Stop() {
	s.grpcServer.GracefulStop()
}

// ListShelters returns the current snapshot. The request may carry a
// "category" string to filter by classification.
func (s *Server) ListShelters(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	category, err := categoryFilter(req)
	if err != nil {
		return nil, err
	}

	resp, err := snapshotToStruct(s.catalog.Snapshot(), category)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode shelters: %v", err)
	}
	return resp, nil
}

// WatchShelters sends the current snapshot, then one message per published snapshot.
func (s *Server) WatchShelters(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	category, err := categoryFilter(req)
	if err != nil {
		return err
	}

	id, ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	s.metrics.StreamSubscribers.Inc()
	defer s.metrics.StreamSubscribers.Dec()

	slog.Info("client subscribed to shelter stream", "subscriber_id", id)

	var sent uint64
	send := func(snap *models.Snapshot) error {
		if snap == nil || snap.Generation <= sent {
			return nil
		}
		msg, err := snapshotToStruct(snap, category)
		if err != nil {
			return status.Errorf(codes.Internal, "failed to encode shelters: %v", err)
		}
		if err := stream.Send(msg); err != nil {
			slog.Error("failed to send snapshot to stream", "error", err, "subscriber_id", id)
			return err
		}
		sent = snap.Generation
		return nil
	}

	if err := send(s.catalog.Snapshot()); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			slog.Info("client disconnected from shelter stream", "subscriber_id", id)
			return nil
		case snap, ok := <-ch:
			if !ok {
				return nil
			}
			if err := send(snap); err != nil {
				return err
			}
		}
	}
}

func categoryFilter(req *structpb.Struct) (*models.Category, error) {
	v, ok := req.GetFields()["category"]
	if !ok || v.GetStringValue() == "" {
		return nil, nil
	}
	c, ok := models.ParseCategory(v.GetStringValue())
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "unknown category: %q", v.GetStringValue())
	}
	return &c, nil
}

func snapshotToStruct(snap *models.Snapshot, category *models.Category) (*structpb.Struct, error) {
	shelters := []any{}
	fields := map[string]any{
		"generation": 0,
		"source":     "",
	}
	if snap != nil {
		fields["generation"] = snap.Generation
		fields["source"] = snap.Source
		for i := range snap.Shelters {
			sh := &snap.Shelters[i]
			c := classifier.Classify(sh.Types)
			if category != nil && c != *category {
				continue
			}
			shelters = append(shelters, shelterFields(sh, c))
		}
	}
	fields["shelters"] = shelters
	return structpb.NewStruct(fields)
}

func shelterFields(sh *models.Shelter, c models.Category) map[string]any {
	types := make([]any, len(sh.Types))
	for i, t := range sh.Types {
		types[i] = t
	}
	return map[string]any{
		"id":        sh.ID,
		"name":      sh.Name,
		"address":   sh.Address,
		"latitude":  sh.Latitude,
		"longitude": sh.Longitude,
		"types":     types,
		"category":  string(c),
		"color":     classifier.Color(c),
	}
}
