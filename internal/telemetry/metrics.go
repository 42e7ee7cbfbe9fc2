// Package telemetry exposes the run's kernel-wide Prometheus series:
// bars processed, per-bar processing latency, total fills, and the
// risk-halt gauge. The agent circuit breaker and request series are
// registered separately by internal/agentclient.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles the kernel-wide Prometheus series for one run.
type Registry struct {
	BarsProcessed prometheus.Counter
	BarLatencyMs  prometheus.Histogram
	FillsTotal    prometheus.Counter
	RiskHalted    prometheus.Gauge
}

// NewRegistry registers the kernel's series against reg.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		BarsProcessed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kairos_bars_processed_total",
			Help: "Total bars processed by the orchestrator.",
		}),
		BarLatencyMs: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kairos_bar_latency_ms",
			Help:    "Per-bar orchestration latency in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 16),
		}),
		FillsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "kairos_fills_total",
			Help: "Total order fills produced by the execution engine.",
		}),
		RiskHalted: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kairos_risk_halted",
			Help: "1 once the run's risk halt latch has tripped, else 0.",
		}),
	}
}

// ObserveBar records one bar's processing latency.
func (r *Registry) ObserveBar(elapsed time.Duration) {
	r.BarsProcessed.Inc()
	r.BarLatencyMs.Observe(float64(elapsed.Milliseconds()))
}
