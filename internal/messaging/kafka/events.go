package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "flashcart.orders.events"
	TopicNotifications   = "flashcart.notifications.email"
	TopicDeadLetterQueue = "flashcart.dlq"
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// OutboxEnvelope - конверт события из transactional outbox.
type OutboxEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"publishedAt"`
}

// Key - ключ партиционирования: события одного заказа попадают в одну партицию.
func (e OutboxEnvelope) Key() string {
	if e.AggregateID != "" {
		return e.AggregateID
	}
	return e.ID
}

// ConsumerDeadLetter - сообщение, которое consumer не смог обработать.
type ConsumerDeadLetter struct {
	OriginalTopic     string    `json:"originalTopic"`
	OriginalPartition int32     `json:"originalPartition"`
	OriginalOffset    int64     `json:"originalOffset"`
	OriginalKey       string    `json:"originalKey"`
	OriginalValue     string    `json:"originalValue"`
	ErrorMessage      string    `json:"errorMessage"`
	FailedAt          time.Time `json:"failedAt"`
	RetryCount        int       `json:"retryCount"`
}

// ParseNotification разбирает запрос на отправку письма.
func ParseNotification(message *sarama.ConsumerMessage) (domain.Notification, error) {
	var n domain.Notification
	if err := json.Unmarshal(message.Value, &n); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: decode notification: %w", ErrMalformedMessage, err)
	}
	if n.Type == "" || n.OrderID == "" || n.Email == "" {
		return domain.Notification{}, fmt.Errorf("%w: notification misses type, orderId or email", ErrMalformedMessage)
	}
	return n, nil
}

// ParseOutboxEnvelope разбирает событие заказа.
func ParseOutboxEnvelope(message *sarama.ConsumerMessage) (OutboxEnvelope, error) {
	var envelope OutboxEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return OutboxEnvelope{}, fmt.Errorf("%w: decode outbox envelope: %w", ErrMalformedMessage, err)
	}
	return envelope, nil
}
