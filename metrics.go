package main

import (
	"net/http"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-replica/replmap/replica"
)

// ReplmapMetrics carries the per-replica instruments of this
// process, dimensioned by a "replica" label so that multiple
// hosted replicas share one registration.
type ReplmapMetrics struct {
	Replica *replica.Metrics
}

// NewReplmapMetrics returns discard instruments when no
// prometheus address is configured and prometheus-backed
// ones otherwise.
func NewReplmapMetrics(prometheusAddr string) *ReplmapMetrics {

	m := &ReplmapMetrics{}

	if prometheusAddr == "" {
		m.Replica = &replica.Metrics{
			LocalOps:       discard.NewCounter(),
			DeltasExported: discard.NewCounter(),
			BytesExported:  discard.NewCounter(),
			DeltasImported: discard.NewCounter(),
			BytesImported:  discard.NewCounter(),
			ImportErrors:   discard.NewCounter(),
		}
	} else {
		m.Replica = &replica.Metrics{
			LocalOps: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "replmap",
				Subsystem: "replica",
				Name:      "local_ops_total",
				Help:      "Number of locally originated write operations",
			}, []string{"replica"}),
			DeltasExported: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "replmap",
				Subsystem: "replica",
				Name:      "deltas_exported_total",
				Help:      "Number of deltas exported",
			}, []string{"replica"}),
			BytesExported: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "replmap",
				Subsystem: "replica",
				Name:      "delta_bytes_exported_total",
				Help:      "Marshalled size of all exported deltas",
			}, []string{"replica"}),
			DeltasImported: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "replmap",
				Subsystem: "replica",
				Name:      "deltas_imported_total",
				Help:      "Number of deltas imported successfully",
			}, []string{"replica"}),
			BytesImported: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "replmap",
				Subsystem: "replica",
				Name:      "delta_bytes_imported_total",
				Help:      "Marshalled size of all imported deltas",
			}, []string{"replica"}),
			ImportErrors: prometheus.NewCounterFrom(prom.CounterOpts{
				Namespace: "replmap",
				Subsystem: "replica",
				Name:      "import_errors_total",
				Help:      "Number of delta imports that surfaced an error",
			}, []string{"replica"}),
		}
	}

	return m
}

// ForReplica binds the shared instruments to one replica name.
func (m *ReplmapMetrics) ForReplica(name string) *replica.Metrics {

	return &replica.Metrics{
		LocalOps:       m.Replica.LocalOps.With("replica", name),
		DeltasExported: m.Replica.DeltasExported.With("replica", name),
		BytesExported:  m.Replica.BytesExported.With("replica", name),
		DeltasImported: m.Replica.DeltasImported.With("replica", name),
		BytesImported:  m.Replica.BytesImported.With("replica", name),
		ImportErrors:   m.Replica.ImportErrors.With("replica", name),
	}
}

func runPromHTTP(logger log.Logger, addr string) {

	if addr == "" {
		level.Debug(logger).Log("msg", "prometheus addr is empty, not exposing prometheus metrics")
		return
	}

	http.Handle("/metrics", promhttp.HandlerFor(prom.DefaultGatherer, promhttp.HandlerOpts{}))

	level.Info(logger).Log("msg", "prometheus handler listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		level.Warn(logger).Log("msg", "failed to serve prometheus metrics", "err", err)
	}
}
