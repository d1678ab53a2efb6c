package sessionstate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by the Reconciler.
type Metrics struct {
	reconciles *prometheus.CounterVec
	errors     *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics creates the reconcile collectors and registers them with reg.
// A nil reg skips registration.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		reconciles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionstate_reconcile_total",
				Help: "Lifecycle events reconciled, by canonical action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessionstate_reconcile_errors_total",
				Help: "Reconciliations that failed and were rolled back.",
			},
			[]string{"action"},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sessionstate_reconcile_duration_seconds",
				Help:    "Time spent reconciling one lifecycle event, lock wait included.",
				Buckets: prometheus.DefBuckets,
			},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.reconciles, m.errors, m.duration} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) observe(action string, outcome Outcome, err error, started time.Time) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(started).Seconds())
	if err != nil {
		m.errors.WithLabelValues(action).Inc()
		return
	}
	m.reconciles.WithLabelValues(action, outcome.String()).Inc()
}
