package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Reservation outcomes recorded by the stock ledger.
const (
	OutcomeReserved          = "reserved"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeNotFound          = "not_found"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// LedgerMetrics records stock reservation outcomes.
type LedgerMetrics struct {
	reservations *prometheus.CounterVec
	units        prometheus.Counter
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reservations_total",
		Help: "Stock reservation attempts by outcome.",
	}, []string{"outcome"})
	units := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ledger_reserved_units_total",
		Help: "Units decremented from quantity on hand.",
	})
	reg.MustRegister(reservations, units)
	return &LedgerMetrics{
		reservations: reservations,
		units:        units,
	}
}

// ObserveReservation increments the outcome counter and, on success, the reserved units.
func (m *LedgerMetrics) ObserveReservation(outcome string, quantity int) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(normalizeLabel(outcome)).Inc()
	if outcome == OutcomeReserved && quantity > 0 {
		m.units.Add(float64(quantity))
	}
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
