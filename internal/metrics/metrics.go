// Package metrics exposes prometheus collectors for ledger activity.
// Collectors register on the default registry; the router serves them
// on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExpensesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hati_expenses_recorded_total",
		Help: "Expenses recorded, including each installment of a monthly plan.",
	})

	SettlementTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hati_settlement_transitions_total",
		Help: "Settlement status transitions by target status.",
	}, []string{"to"})

	AgreementsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hati_agreements_resolved_total",
		Help: "Settlement agreements by terminal outcome.",
	}, []string{"outcome"})
)
