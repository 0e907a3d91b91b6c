package metrics

import "github.com/prometheus/client_golang/prometheus"

// Breaker state values exported by shipping_breaker_state.
const (
	BreakerClosed   = 0
	BreakerOpen     = 1
	BreakerHalfOpen = 2
)

// ShippingMetrics tracks where shipping quotes come from and the rate API
// breaker state.
type ShippingMetrics struct {
	estimates *prometheus.CounterVec
	breaker   prometheus.Gauge
}

func NewShippingMetrics(reg prometheus.Registerer) *ShippingMetrics {
	if reg == nil {
		return &ShippingMetrics{}
	}
	m := &ShippingMetrics{
		estimates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shipping_estimates_total",
			Help:      "Shipping estimates by source (EXTERNAL or FALLBACK).",
		}, []string{"source"}),
		breaker: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shipping_breaker_state",
			Help:      "Rate API breaker state: 0 closed, 1 open, 2 half-open.",
		}),
	}
	reg.MustRegister(m.estimates, m.breaker)
	return m
}

func (m *ShippingMetrics) IncEstimate(source string) {
	if m == nil || m.estimates == nil {
		return
	}
	m.estimates.WithLabelValues(normalizeLabel(source)).Inc()
}

func (m *ShippingMetrics) SetBreakerState(state int) {
	if m == nil || m.breaker == nil {
		return
	}
	m.breaker.Set(float64(state))
}
