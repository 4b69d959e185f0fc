package replica

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"golang.org/x/net/context"

	"github.com/go-replica/replmap/crdt"
)

// Structs

type loggingService struct {
	logger  log.Logger
	service Service
}

// Functions

// NewLoggingService wraps a provided existing
// service with the provided logger.
func NewLoggingService(s Service, logger log.Logger) Service {

	return &loggingService{
		logger:  logger,
		service: s,
	}
}

// Name wraps this service's Name method.
func (s *loggingService) Name() string {
	return s.service.Name()
}

// ApplyLocal wraps this service's ApplyLocal method
// with added logging capabilities.
func (s *loggingService) ApplyLocal(ctx context.Context, key string, value crdt.Value) (crdt.Operation, error) {

	op, err := s.service.ApplyLocal(ctx, key, value)

	logger := log.With(s.logger,
		"method", "ApplyLocal",
		"key", key,
		"value", value.String(),
	)

	if err != nil {
		level.Error(logger).Log("msg", "failed to apply local write", "err", err)
	} else {
		level.Debug(logger).Log("op", op.String())
	}

	return op, err
}

// Read wraps this service's Read method
// with added logging capabilities.
func (s *loggingService) Read(ctx context.Context, key string) (crdt.Value, bool) {
	return s.service.Read(ctx, key)
}

// Snapshot wraps this service's Snapshot method
// with added logging capabilities.
func (s *loggingService) Snapshot(ctx context.Context) map[string]crdt.Entry {
	return s.service.Snapshot(ctx)
}

// Frontier wraps this service's Frontier method
// with added logging capabilities.
func (s *loggingService) Frontier(ctx context.Context) crdt.VClock {
	return s.service.Frontier(ctx)
}

// PeerFrontier wraps this service's PeerFrontier method
// with added logging capabilities.
func (s *loggingService) PeerFrontier(ctx context.Context, peer string) crdt.VClock {
	return s.service.PeerFrontier(ctx, peer)
}

// ExportDelta wraps this service's ExportDelta method
// with added logging capabilities.
func (s *loggingService) ExportDelta(ctx context.Context, target crdt.VClock) []byte {

	raw := s.service.ExportDelta(ctx, target)

	level.Debug(log.With(s.logger,
		"method", "ExportDelta",
	)).Log("bytes", len(raw))

	return raw
}

// ExportDeltaFor wraps this service's ExportDeltaFor method
// with added logging capabilities.
func (s *loggingService) ExportDeltaFor(ctx context.Context, peer string) []byte {

	raw := s.service.ExportDeltaFor(ctx, peer)

	level.Debug(log.With(s.logger,
		"method", "ExportDeltaFor",
		"peer", peer,
	)).Log("bytes", len(raw))

	return raw
}

// ImportDelta wraps this service's ImportDelta method
// with added logging capabilities.
func (s *loggingService) ImportDelta(ctx context.Context, raw []byte) error {

	err := s.service.ImportDelta(ctx, raw)

	logger := log.With(s.logger,
		"method", "ImportDelta",
		"bytes", len(raw),
	)

	if err != nil {
		level.Info(logger).Log("msg", "failed to import delta", "err", err)
	} else {
		level.Debug(logger).Log()
	}

	return err
}

// Compact wraps this service's Compact method
// with added logging capabilities.
func (s *loggingService) Compact(ctx context.Context) int {

	dropped := s.service.Compact(ctx)

	level.Debug(log.With(s.logger,
		"method", "Compact",
	)).Log("dropped", dropped)

	return dropped
}
