package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InvoiceMetrics records invoice creation results.
type InvoiceMetrics struct {
	created prometheus.Counter
	aborts  *prometheus.CounterVec
	total   prometheus.Histogram
	lines   prometheus.Histogram
}

// NewInvoiceMetrics registers the invoice metrics on the provided registerer.
func NewInvoiceMetrics(reg prometheus.Registerer) *InvoiceMetrics {
	if reg == nil {
		return &InvoiceMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "invoices_created_total",
		Help: "Invoices committed.",
	})
	aborts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "invoice_aborts_total",
		Help: "Invoice creations aborted by reason.",
	}, []string{"reason"})
	total := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_total_cents",
		Help:    "Committed invoice totals in minor units.",
		Buckets: prometheus.ExponentialBuckets(100, 4, 10),
	})
	lines := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "invoice_line_items",
		Help:    "Line items per committed invoice.",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
	})
	reg.MustRegister(created, aborts, total, lines)
	return &InvoiceMetrics{
		created: created,
		aborts:  aborts,
		total:   total,
		lines:   lines,
	}
}

// ObserveCreated records a committed invoice.
func (m *InvoiceMetrics) ObserveCreated(totalCents int64, lineItems int) {
	if m == nil || m.created == nil {
		return
	}
	m.created.Inc()
	m.total.Observe(float64(totalCents))
	m.lines.Observe(float64(lineItems))
}

// IncAbort records an aborted invoice creation.
func (m *InvoiceMetrics) IncAbort(reason string) {
	if m == nil || m.aborts == nil {
		return
	}
	m.aborts.WithLabelValues(normalizeLabel(reason)).Inc()
}
