package webhook

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the webhook's Prometheus instruments.
type Metrics struct {
	requests *prometheus.CounterVec
	duration prometheus.Histogram
	patchOps prometheus.Histogram
}

// NewMetrics registers the webhook instruments on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "periscope_admission_requests_total",
			Help: "Admission requests handled, by decision outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "periscope_admission_duration_seconds",
			Help:    "Admission decision latency.",
			Buckets: prometheus.DefBuckets,
		}),
		patchOps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "periscope_admission_patch_ops",
			Help:    "JSON patch operations emitted per mutated pod.",
			Buckets: []float64{1, 2, 5, 10, 20, 50},
		}),
	}

	reg.MustRegister(m.requests, m.duration, m.patchOps)
	return m
}

// Observe records one handled request.
func (m *Metrics) Observe(outcome Outcome, seconds float64, patchOps int) {
	m.requests.WithLabelValues(string(outcome)).Inc()
	m.duration.Observe(seconds)
	if patchOps > 0 {
		m.patchOps.Observe(float64(patchOps))
	}
}
