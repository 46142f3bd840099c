package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты оформления заказа для label result.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// CheckoutMetrics содержит метрики оформления и жизненного цикла заказов.
type CheckoutMetrics struct {
	checkouts    *prometheus.CounterVec
	duration     prometheus.Histogram
	stepDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	reservations *prometheus.CounterVec
	transitions  *prometheus.CounterVec
}

// NewCheckoutMetrics регистрирует метрики в DefaultRegisterer.
func NewCheckoutMetrics() *CheckoutMetrics {
	return NewCheckoutMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCheckoutMetricsWithRegisterer регистрирует метрики в переданном registerer.
func NewCheckoutMetricsWithRegisterer(registerer prometheus.Registerer) *CheckoutMetrics {
	return &CheckoutMetrics{
		checkouts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashcart_checkouts_total",
			Help: "Total number of checkout attempts grouped by error kind.",
		}, []string{"result", "kind"})),
		duration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashcart_checkout_duration_seconds",
			Help:    "End-to-end checkout duration in seconds.",
			Buckets: prometheus.DefBuckets,
		})),
		stepDuration: register(registerer, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flashcart_checkout_step_duration_seconds",
			Help:    "Duration of individual checkout steps in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"step"})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flashcart_checkouts_in_flight",
			Help: "Number of checkouts currently being processed.",
		})),
		reservations: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashcart_stock_reservations_total",
			Help: "Stock reservation attempts grouped by result.",
		}, []string{"result"})),
		transitions: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashcart_order_status_transitions_total",
			Help: "Applied order status transitions grouped by target status.",
		}, []string{"status"})),
	}
}

// CheckoutStarted отмечает начало оформления и возвращает функцию завершения.
func (m *CheckoutMetrics) CheckoutStarted() func(kind string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.inFlight.Inc()
	return func(kind string) {
		m.inFlight.Dec()
		m.duration.Observe(time.Since(start).Seconds())
		result := ResultSuccess
		if kind != "" {
			result = ResultFailure
		}
		m.checkouts.WithLabelValues(result, kind).Inc()
	}
}

// ObserveStep записывает длительность шага оформления.
func (m *CheckoutMetrics) ObserveStep(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordReservation учитывает попытку резерва: ok, out_of_stock, not_found, error.
func (m *CheckoutMetrics) RecordReservation(result string) {
	if m == nil {
		return
	}
	m.reservations.WithLabelValues(result).Inc()
}

// RecordTransition учитывает применённый переход статуса.
func (m *CheckoutMetrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(status).Inc()
}
