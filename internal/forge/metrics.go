package forge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records tool invocation counters. A nil *Metrics is a no-op.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	skipped     *prometheus.CounterVec
	diagnostics *prometheus.CounterVec
}

// NewMetrics registers the runner collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		invocations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forgelsp_tool_invocations_total",
			Help: "Forge invocations by mode and outcome",
		}, []string{"mode", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forgelsp_tool_duration_seconds",
			Help:    "Forge invocation wall time in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}, []string{"mode"}),
		skipped: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forgelsp_tool_records_skipped_total",
			Help: "Output records dropped as malformed",
		}, []string{"mode"}),
		diagnostics: f.NewCounterVec(prometheus.CounterOpts{
			Name: "forgelsp_tool_diagnostics_total",
			Help: "Diagnostics extracted from forge output",
		}, []string{"mode"}),
	}
}

func (m *Metrics) observe(mode Mode, outcome string, d time.Duration, diags, skipped int) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(string(mode), outcome).Inc()
	m.duration.WithLabelValues(string(mode)).Observe(d.Seconds())
	m.skipped.WithLabelValues(string(mode)).Add(float64(skipped))
	m.diagnostics.WithLabelValues(string(mode)).Add(float64(diags))
}
