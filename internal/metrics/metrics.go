package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stemhub"

// Metrics holds the counters exported by the voting subsystem.
type Metrics struct {
	VotesCast        *prometheus.CounterVec // by outcome: accepted or an error code
	StemsSubmitted   *prometheus.CounterVec // by status: queued or accepted
	StemsPromoted    prometheus.Counter
	IdentityChanges  *prometheus.CounterVec // by action: register or revoke
	PromotionSkipped prometheus.Counter     // promotion runs that hit the track limit
}

// New creates the counters and registers them with registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		VotesCast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "votes_cast_total",
			Help:      "Number of vote attempts by outcome",
		}, []string{"outcome"}),
		StemsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stems_submitted_total",
			Help:      "Number of stems submitted by resulting status",
		}, []string{"status"}),
		StemsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stems_promoted_total",
			Help:      "Number of queued stems promoted into a project",
		}),
		IdentityChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "identity_changes_total",
			Help:      "Number of voter identity registrations and revocations",
		}, []string{"action"}),
		PromotionSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_skipped_total",
			Help:      "Number of promotion attempts on projects at their track limit",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.VotesCast,
		m.StemsSubmitted,
		m.StemsPromoted,
		m.IdentityChanges,
		m.PromotionSkipped,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// NewUnregistered returns counters that are not exported anywhere.
func NewUnregistered() *Metrics {
	m, _ := New(prometheus.NewRegistry())
	return m
}
