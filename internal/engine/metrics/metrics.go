package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the resolution engine.
type Metrics struct {
	// End-to-end resolution latency by description type and operation
	ResolveLatency *prometheus.HistogramVec

	// Client actions produced, by variant
	Actions *prometheus.CounterVec

	// Failed resolutions by domain error code
	Errors *prometheus.CounterVec

	// Challenge session state changes
	ChallengeTransitions *prometheus.CounterVec
}

// New registers the engine metrics with reg. A nil reg uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		ResolveLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkout_engine_resolve_duration_seconds",
			Help:    "Duration of description resolution including overlays and post-processing",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"description_type", "operation"}),

		Actions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_engine_client_actions_total",
			Help: "Total client actions assembled by variant",
		}, []string{"type"}), // type: "pidl", "redirect", "success", "failure"

		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_engine_errors_total",
			Help: "Total failed resolutions by error code",
		}, []string{"code"}),

		ChallengeTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "checkout_challenge_transitions_total",
			Help: "Total challenge session state transitions",
		}, []string{"from", "to"}),
	}
}

// ObserveResolveLatency records how long one resolution took.
func (m *Metrics) ObserveResolveLatency(descriptionType, operation string, d time.Duration) {
	if m != nil {
		m.ResolveLatency.WithLabelValues(descriptionType, operation).Observe(d.Seconds())
	}
}

// IncrementAction records an assembled client action.
func (m *Metrics) IncrementAction(actionType string) {
	if m != nil {
		m.Actions.WithLabelValues(actionType).Inc()
	}
}

// IncrementError records a failed resolution.
func (m *Metrics) IncrementError(code string) {
	if m != nil {
		m.Errors.WithLabelValues(code).Inc()
	}
}

// ObserveChallengeTransition records a session moving from one state to another.
func (m *Metrics) ObserveChallengeTransition(from, to string) {
	if m != nil {
		m.ChallengeTransitions.WithLabelValues(from, to).Inc()
	}
}
