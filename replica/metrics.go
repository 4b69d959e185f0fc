package replica

import (
	"github.com/go-kit/kit/metrics"
	"golang.org/x/net/context"

	"github.com/go-replica/replmap/crdt"
)

// Structs

// Metrics bundles the instruments the metrics middleware
// feeds. Callers construct them against their backend of
// choice, typically prometheus or discard.
type Metrics struct {
	LocalOps       metrics.Counter
	DeltasExported metrics.Counter
	BytesExported  metrics.Counter
	DeltasImported metrics.Counter
	BytesImported  metrics.Counter
	ImportErrors   metrics.Counter
}

type metricsService struct {
	service Service
	metrics *Metrics
}

// Functions

// NewMetricsService wraps a provided existing service
// with the provided metrics instruments.
func NewMetricsService(s Service, m *Metrics) Service {

	return &metricsService{
		service: s,
		metrics: m,
	}
}

func (s *metricsService) Name() string {
	return s.service.Name()
}

func (s *metricsService) ApplyLocal(ctx context.Context, key string, value crdt.Value) (crdt.Operation, error) {

	op, err := s.service.ApplyLocal(ctx, key, value)

	if err == nil {
		s.metrics.LocalOps.Add(1)
	}

	return op, err
}

func (s *metricsService) Read(ctx context.Context, key string) (crdt.Value, bool) {
	return s.service.Read(ctx, key)
}

func (s *metricsService) Snapshot(ctx context.Context) map[string]crdt.Entry {
	return s.service.Snapshot(ctx)
}

func (s *metricsService) Frontier(ctx context.Context) crdt.VClock {
	return s.service.Frontier(ctx)
}

func (s *metricsService) PeerFrontier(ctx context.Context, peer string) crdt.VClock {
	return s.service.PeerFrontier(ctx, peer)
}

func (s *metricsService) ExportDelta(ctx context.Context, target crdt.VClock) []byte {

	raw := s.service.ExportDelta(ctx, target)

	s.metrics.DeltasExported.Add(1)
	s.metrics.BytesExported.Add(float64(len(raw)))

	return raw
}

func (s *metricsService) ExportDeltaFor(ctx context.Context, peer string) []byte {

	raw := s.service.ExportDeltaFor(ctx, peer)

	s.metrics.DeltasExported.Add(1)
	s.metrics.BytesExported.Add(float64(len(raw)))

	return raw
}

func (s *metricsService) ImportDelta(ctx context.Context, raw []byte) error {

	err := s.service.ImportDelta(ctx, raw)

	if err != nil {
		s.metrics.ImportErrors.Add(1)
		return err
	}

	s.metrics.DeltasImported.Add(1)
	s.metrics.BytesImported.Add(float64(len(raw)))

	return nil
}

func (s *metricsService) Compact(ctx context.Context) int {
	return s.service.Compact(ctx)
}
