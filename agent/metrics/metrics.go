// Package metrics exposes Prometheus instruments for operator turns, command
// results and lead intake. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	contractx "github.com/tanpawarit/quote-assistant/agent/contract"
)

const namespace = "quote"

const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeError     = "error"
	OutcomeRejected  = "rejected"
)

type Metrics struct {
	turns        *prometheus.CounterVec
	turnDuration prometheus.Histogram
	rounds       prometheus.Histogram
	commands     *prometheus.CounterVec
	leads        *prometheus.CounterVec
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Operator turns by outcome.",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Wall time of one operator turn, proposer included.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		}),
		rounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_rounds",
			Help:      "Proposer rounds per turn.",
			Buckets:   []float64{1, 2, 3, 4},
		}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Executed command invocations by command and result action.",
		}, []string{"command", "action"}),
		leads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "leads_total",
			Help:      "Lead intake requests by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.turns, m.turnDuration, m.rounds, m.commands, m.leads)
	}
	return m
}

func (m *Metrics) ObserveTurn(outcome string, elapsed time.Duration, rounds int) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(elapsed.Seconds())
	if rounds > 0 {
		m.rounds.Observe(float64(rounds))
	}
}

func (m *Metrics) ObserveResults(results []contractx.CommandResult) {
	if m == nil {
		return
	}
	for _, res := range results {
		command := res.Command
		if command == "" {
			command = "unknown"
		}
		m.commands.WithLabelValues(command, string(res.Action)).Inc()
	}
}

func (m *Metrics) ObserveLead(outcome string) {
	if m == nil {
		return
	}
	m.leads.WithLabelValues(outcome).Inc()
}
