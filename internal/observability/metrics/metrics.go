// Package metrics exposes prometheus instrumentation for the credit ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Metrics holds every collector the service emits.
type Metrics struct {
	ConsumedUnits      *prometheus.CounterVec
	OverageCharges     prometheus.Counter
	OverageUnavailable prometheus.Counter
	ReplayedRequests   *prometheus.CounterVec
	TrialsEnded        prometheus.Counter
}

// New registers the credit-ledger collectors on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConsumedUnits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "consumed_units_total",
			Help:      "Credit units debited, by bucket source.",
		}, []string{"source"}),
		OverageCharges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "overage_charges_total",
			Help:      "Metered overage charges created.",
		}),
		OverageUnavailable: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "overage_unavailable_total",
			Help:      "Consumption requests blocked by a failed billing-method check.",
		}),
		ReplayedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "replayed_requests_total",
			Help:      "Requests ignored as idempotency-key replays, by scope.",
		}, []string{"scope"}),
		TrialsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "creditledger",
			Name:      "trials_ended_total",
			Help:      "Trials transitioned to the ended state.",
		}),
	}
	reg.MustRegister(
		m.ConsumedUnits,
		m.OverageCharges,
		m.OverageUnavailable,
		m.ReplayedRequests,
		m.TrialsEnded,
	)
	return m
}

var Module = fx.Module("metrics",
	fx.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}),
	fx.Provide(func(reg *prometheus.Registry) *Metrics {
		return New(reg)
	}),
)
