package domain

import (
	"context"
	"time"
)

// PaymentGateway - платёжный шаг оформления (в этой системе симулируется).
type PaymentGateway interface {
	Authorize(ctx context.Context, req PaymentRequest) (PaymentStatus, error)
}

// NotificationSender доставляет письмо покупателю.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// Notifier отправляет уведомления fire-and-forget: результат вызывающему не возвращается.
type Notifier interface {
	Dispatch(n Notification)
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
	CreatedAt     time.Time
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}

// Типы событий заказа, которые уходят через outbox.
const (
	AggregateOrder          = "order"
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)
