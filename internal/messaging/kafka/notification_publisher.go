package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// NotificationPublisher ставит письма в очередь notification-worker вместо прямой отправки.
type NotificationPublisher struct {
	producer *Producer
	topic    string
}

var _ domain.NotificationSender = (*NotificationPublisher)(nil)

func NewNotificationPublisher(producer *Producer) *NotificationPublisher {
	return &NotificationPublisher{producer: producer, topic: TopicNotifications}
}

// Send публикует запрос на письмо; ключ - номер заказа.
func (p *NotificationPublisher) Send(ctx context.Context, n domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.Email == "" || n.OrderID == "" {
		return domain.ValidationError("notification", "requires email and orderId")
	}
	if err := p.producer.PublishEvent(p.topic, n.OrderID, n,
		sarama.RecordHeader{Key: []byte(HeaderEventType), Value: []byte(n.Type)}); err != nil {
		return fmt.Errorf("enqueue %s notification: %w", n.Type, err)
	}
	return nil
}
