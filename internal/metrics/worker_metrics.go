package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OutboxMetrics - метрики публикации transactional outbox.
type OutboxMetrics struct {
	attempts  *prometheus.CounterVec
	pending   prometheus.Gauge
	oldestAge prometheus.Gauge
}

// NewOutboxMetrics регистрирует метрики outbox.
func NewOutboxMetrics(registerer prometheus.Registerer) *OutboxMetrics {
	return &OutboxMetrics{
		attempts: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashcart_outbox_publish_attempts_total",
			Help: "Total number of outbox publish attempts grouped by result.",
		}, []string{"result"})),
		pending: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flashcart_outbox_pending_records",
			Help: "Current number of pending records in transactional outbox.",
		})),
		oldestAge: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flashcart_outbox_oldest_pending_age_seconds",
			Help: "Age in seconds of the oldest pending outbox record.",
		})),
	}
}

// RecordAttempt учитывает попытку публикации: sent, retry_error, failed, dlq_failed.
func (m *OutboxMetrics) RecordAttempt(result string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(result).Inc()
}

// SetBacklog обновляет размер backlog и возраст самого старого сообщения.
func (m *OutboxMetrics) SetBacklog(pending int, oldest time.Time, now time.Time) {
	if m == nil {
		return
	}
	m.pending.Set(float64(pending))
	if pending == 0 || oldest.IsZero() {
		m.oldestAge.Set(0)
		return
	}
	m.oldestAge.Set(max(now.Sub(oldest).Seconds(), 0))
}

// NotificationMetrics - метрики отправки писем.
type NotificationMetrics struct {
	sent     *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewNotificationMetrics регистрирует метрики уведомлений.
func NewNotificationMetrics(registerer prometheus.Registerer) *NotificationMetrics {
	return &NotificationMetrics{
		sent: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashcart_notifications_total",
			Help: "Notification dispatch results grouped by type.",
		}, []string{"type", "result"})),
		inFlight: register(registerer, prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "flashcart_notifications_in_flight",
			Help: "Number of notifications currently being sent.",
		})),
	}
}

// Started отмечает начало отправки и возвращает функцию завершения.
func (m *NotificationMetrics) Started(kind string) func(err error) {
	if m == nil {
		return func(error) {}
	}
	m.inFlight.Inc()
	return func(err error) {
		m.inFlight.Dec()
		result := ResultSuccess
		if err != nil {
			result = ResultFailure
		}
		m.sent.WithLabelValues(kind, result).Inc()
	}
}

// CleanupMetrics - метрики очистки просроченных ключей идемпотентности.
type CleanupMetrics struct {
	runs     *prometheus.CounterVec
	deleted  prometheus.Counter
	duration prometheus.Histogram
}

// NewCleanupMetrics регистрирует метрики cleanup-воркера.
func NewCleanupMetrics(registerer prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: register(registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "flashcart_idempotency_cleanup_runs_total",
			Help: "Total number of idempotency cleanup runs grouped by result.",
		}, []string{"result"})),
		deleted: register(registerer, prometheus.NewCounter(prometheus.CounterOpts{
			Name: "flashcart_idempotency_cleanup_deleted_total",
			Help: "Total number of deleted expired idempotency keys.",
		})),
		duration: register(registerer, prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "flashcart_idempotency_cleanup_duration_seconds",
			Help:    "Duration of idempotency cleanup runs.",
			Buckets: prometheus.DefBuckets,
		})),
	}
}

// RecordRun учитывает завершённый проход очистки.
func (m *CleanupMetrics) RecordRun(deleted int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
	m.deleted.Add(float64(deleted))
	if err != nil {
		m.runs.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.runs.WithLabelValues(ResultSuccess).Inc()
}
