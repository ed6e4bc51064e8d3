package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/subremind/backend/internal/domain"
)

// Sweep item outcomes.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics holds the Prometheus collectors for sweeps, reminders and linking.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	sweepRuns       *prometheus.CounterVec
	sweepItems      *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	linkTransitions *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sweepRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subremind",
			Name:      "sweep_runs_total",
			Help:      "Number of sweep runs by trigger.",
		}, []string{"trigger"}),
		sweepItems: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subremind",
			Name:      "sweep_items_total",
			Help:      "Subscriptions handled by sweeps, by trigger and outcome.",
		}, []string{"trigger", "outcome"}),
		reminders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subremind",
			Name:      "reminders_total",
			Help:      "Reminder delivery attempts by result.",
		}, []string{"result"}),
		linkTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "subremind",
			Name:      "link_transitions_total",
			Help:      "Linking session transitions by resulting state.",
		}, []string{"state"}),
	}
	if reg != nil {
		reg.MustRegister(m.sweepRuns, m.sweepItems, m.reminders, m.linkTransitions)
	}
	return m
}

func (m *Metrics) sweepRun(trigger domain.Trigger) {
	if m == nil {
		return
	}
	m.sweepRuns.WithLabelValues(string(trigger)).Inc()
}

func (m *Metrics) sweepItem(trigger domain.Trigger, outcome string) {
	if m == nil {
		return
	}
	m.sweepItems.WithLabelValues(string(trigger), outcome).Inc()
}

func (m *Metrics) reminder(status domain.DeliveryStatus) {
	if m == nil {
		return
	}
	m.reminders.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) linkTransition(state domain.LinkState) {
	if m == nil {
		return
	}
	m.linkTransitions.WithLabelValues(string(state)).Inc()
}
