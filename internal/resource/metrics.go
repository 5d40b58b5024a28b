package resource

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the collectors shared by every Manager. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	fetches    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	superseded *prometheus.CounterVec
	mutations  *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_console_fetch_total",
			Help: "List fetches against the backend by resource and outcome.",
		}, []string{"resource", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "emr_console_fetch_duration_seconds",
			Help:    "Latency of list fetches against the backend.",
			Buckets: prometheus.DefBuckets,
		}, []string{"resource"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_console_fetch_superseded_total",
			Help: "Fetch results discarded because a newer fetch was issued.",
		}, []string{"resource"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "emr_console_mutations_total",
			Help: "Create/update/delete submissions by resource, kind and outcome.",
		}, []string{"resource", "kind", "outcome"}),
	}

	for _, c := range []prometheus.Collector{m.fetches, m.duration, m.superseded, m.mutations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeFetch(resource, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(resource, outcome).Inc()
	m.duration.WithLabelValues(resource).Observe(d.Seconds())
}

func (m *Metrics) observeSuperseded(resource string) {
	if m == nil {
		return
	}
	m.superseded.WithLabelValues(resource).Inc()
}

func (m *Metrics) observeMutation(resource string, kind MutationKind, outcome string) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(resource, string(kind), outcome).Inc()
}
