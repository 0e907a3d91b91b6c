package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics counts publisher results per sink.
type OutboxMetrics struct {
	published *prometheus.CounterVec
	failed    *prometheus.CounterVec
	dlq       prometheus.Counter
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_published_total",
			Help:      "Outbox events delivered to the sink.",
		}, []string{"sink"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_publish_failures_total",
			Help:      "Outbox delivery attempts that failed.",
		}, []string{"sink"}),
		dlq: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_dead_lettered_total",
			Help:      "Outbox events moved to the DLQ.",
		}),
	}
	reg.MustRegister(m.published, m.failed, m.dlq)
	return m
}

func (m *OutboxMetrics) IncPublished(sink string) {
	if m == nil || m.published == nil {
		return
	}
	m.published.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *OutboxMetrics) IncFailed(sink string) {
	if m == nil || m.failed == nil {
		return
	}
	m.failed.WithLabelValues(normalizeLabel(sink)).Inc()
}

func (m *OutboxMetrics) IncDeadLettered() {
	if m == nil || m.dlq == nil {
		return
	}
	m.dlq.Inc()
}
