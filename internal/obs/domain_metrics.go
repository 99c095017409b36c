package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// PricingLinesTotal counts line pricing requests by tax category and outcome.
	PricingLinesTotal *prometheus.CounterVec
	// BarcodesIssuedTotal counts EAN-13 codes handed out, by reservation outcome.
	BarcodesIssuedTotal *prometheus.CounterVec
	// BarcodeValidationsTotal counts validation checks by verdict.
	BarcodeValidationsTotal *prometheus.CounterVec
	// SaleTransitionsTotal counts sale workflow operations by action and outcome.
	SaleTransitionsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics creates the domain collectors on first use and
// registers them with reg, which may differ between calls (each test router
// builds its own registry). The namespace of the first call wins.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		PricingLinesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pricing_lines_total",
			Help:      "Count of priced sale lines by tax category and result.",
		}, []string{"category", "result"})
		BarcodesIssuedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barcodes_issued_total",
			Help:      "Count of EAN-13 codes issued by reservation result.",
		}, []string{"result"})
		BarcodeValidationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barcode_validations_total",
			Help:      "Count of EAN-13 validations by verdict.",
		}, []string{"valid"})
		SaleTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_transitions_total",
			Help:      "Count of sale workflow operations by action and result.",
		}, []string{"action", "result"})
	})
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	register(reg, PricingLinesTotal)
	register(reg, BarcodesIssuedTotal)
	register(reg, BarcodeValidationsTotal)
	register(reg, SaleTransitionsTotal)
}

// The observe helpers are no-ops until MustRegisterDomainMetrics has run.

// ObservePricedLine records a pricing outcome.
func ObservePricedLine(category, result string) {
	if PricingLinesTotal != nil {
		PricingLinesTotal.WithLabelValues(category, result).Inc()
	}
}

// ObserveBarcodeIssued records an issuance outcome.
func ObserveBarcodeIssued(result string) {
	if BarcodesIssuedTotal != nil {
		BarcodesIssuedTotal.WithLabelValues(result).Inc()
	}
}

// ObserveBarcodeValidation records a validation verdict.
func ObserveBarcodeValidation(valid bool) {
	if BarcodeValidationsTotal != nil {
		label := "false"
		if valid {
			label = "true"
		}
		BarcodeValidationsTotal.WithLabelValues(label).Inc()
	}
}

// ObserveSaleTransition records a workflow action outcome.
func ObserveSaleTransition(action string, err error) {
	if SaleTransitionsTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		SaleTransitionsTotal.WithLabelValues(action, result).Inc()
	}
}
