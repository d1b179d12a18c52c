// Package metrics provides Prometheus metrics for the adaptation cycle.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/neuroadapt/internal/state"
)

var (
	// CyclesTotal counts completed cycles.
	// Labels: result (commit, no_op, error)
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuroadapt",
			Subsystem: "session",
			Name:      "cycles_total",
			Help:      "Total number of adaptation cycles by result",
		},
		[]string{"result"},
	)

	// CycleDuration tracks how long one cycle takes end to end.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "neuroadapt",
			Subsystem: "session",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of adaptation cycles in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	// TraitValue holds the latest value of each trait.
	// Labels: session, trait
	TraitValue = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "neuroadapt",
			Subsystem: "session",
			Name:      "trait_value",
			Help:      "Current trait value per session",
		},
		[]string{"session", "trait"},
	)

	// RecorderFailures counts cycle records that could not be persisted or published.
	// Labels: recorder
	RecorderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "neuroadapt",
			Subsystem: "session",
			Name:      "recorder_failures_total",
			Help:      "Total number of failed cycle recordings",
		},
		[]string{"recorder"},
	)
)

// ObserveTraits sets the trait gauges for a session.
func ObserveTraits(sessionID string, t state.Traits) {
	for _, name := range state.TraitNames {
		v, _ := t.Get(name)
		TraitValue.WithLabelValues(sessionID, string(name)).Set(v)
	}
}

// ForgetSession drops the trait gauges of a closed session.
func ForgetSession(sessionID string) {
	TraitValue.DeletePartialMatch(prometheus.Labels{"session": sessionID})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
