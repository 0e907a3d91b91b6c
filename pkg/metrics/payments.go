package metrics

import "github.com/prometheus/client_golang/prometheus"

// PaymentMetrics counts webhook outcomes and proof verifications.
type PaymentMetrics struct {
	webhooks *prometheus.CounterVec
	proofs   *prometheus.CounterVec
}

func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	m := &PaymentMetrics{
		webhooks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_outcomes_total",
			Help:      "Gateway notifications by reconciliation outcome.",
		}, []string{"outcome"}),
		proofs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_proof_verifications_total",
			Help:      "Manual proof decisions by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.webhooks, m.proofs)
	return m
}

func (m *PaymentMetrics) IncWebhook(outcome string) {
	if m == nil || m.webhooks == nil {
		return
	}
	m.webhooks.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *PaymentMetrics) IncProofVerification(result string) {
	if m == nil || m.proofs == nil {
		return
	}
	m.proofs.WithLabelValues(normalizeLabel(result)).Inc()
}
