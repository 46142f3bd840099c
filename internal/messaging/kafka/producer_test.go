package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

func newTestProducer(t *testing.T) (*Producer, *mocks.SyncProducer) {
	t.Helper()
	mockProducer := mocks.NewSyncProducer(t, nil)
	return NewProducerFromSync(mockProducer, log.WithField("component", "kafka-producer-test")), mockProducer
}

func TestProducer_PublishEvent(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]string
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["orderId"] != "ORD-1" {
			return errors.New("unexpected payload")
		}
		return nil
	})

	if err := producer.PublishEvent(TopicOrderEvents, "ORD-1", map[string]string{"orderId": "ORD-1"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_PublishEvent_Error(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	err := producer.PublishEvent(TopicOrderEvents, "ORD-1", map[string]string{})
	if !errors.Is(err, sarama.ErrOutOfBrokers) {
		t.Fatalf("expected ErrOutOfBrokers, got %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestProducer_NilSafe(t *testing.T) {
	var producer *Producer
	if err := producer.PublishRaw("topic", "k", nil); !errors.Is(err, ErrProducerNotInitialized) {
		t.Fatalf("expected ErrProducerNotInitialized, got %v", err)
	}
	if err := producer.Close(); err != nil {
		t.Fatalf("close on nil producer: %v", err)
	}
	if err := producer.Ping(); !errors.Is(err, ErrProducerNotInitialized) {
		t.Fatalf("expected ErrProducerNotInitialized from Ping, got %v", err)
	}
}

func TestProducer_PingWithoutClient(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	if err := producer.Ping(); err != nil {
		t.Fatalf("ping: %v", err)
	}
	mockProducer.ExpectSendMessageAndSucceed()
	if err := producer.PublishRaw("topic", "k", []byte("{}")); err != nil {
		t.Fatalf("publish: %v", err)
	}
}

func TestOutboxPublisher_Envelope(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	publisher := NewOutboxPublisher(producer, "")
	publishedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	publisher.now = func() time.Time { return publishedAt }

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var envelope OutboxEnvelope
		if err := json.Unmarshal(val, &envelope); err != nil {
			return err
		}
		if envelope.ID != "evt-1" || envelope.AggregateID != "ORD-1" || envelope.EventType != domain.EventOrderCreated {
			return errors.New("unexpected envelope fields")
		}
		if string(envelope.Payload) != `{"orderId":"ORD-1"}` {
			return errors.New("payload must be embedded as raw JSON")
		}
		if !envelope.PublishedAt.Equal(publishedAt) {
			return errors.New("unexpected publishedAt")
		}
		return nil
	})

	err := publisher.Publish(domain.OutboxMessage{
		ID:            "evt-1",
		AggregateType: domain.AggregateOrder,
		AggregateID:   "ORD-1",
		EventType:     domain.EventOrderCreated,
		Payload:       []byte(`{"orderId":"ORD-1"}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if publisher.topic != TopicOrderEvents {
		t.Fatalf("default topic must be %s, got %s", TopicOrderEvents, publisher.topic)
	}
	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_NotInitialized(t *testing.T) {
	publisher := NewOutboxPublisher(nil, TopicDeadLetterQueue)
	if err := publisher.Publish(domain.OutboxMessage{ID: "x"}); !errors.Is(err, ErrProducerNotInitialized) {
		t.Fatalf("expected ErrProducerNotInitialized, got %v", err)
	}
}

func TestNotificationPublisher_Send(t *testing.T) {
	producer, mockProducer := newTestProducer(t)
	publisher := NewNotificationPublisher(producer)

	mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		msg := &sarama.ConsumerMessage{Value: val}
		n, err := ParseNotification(msg)
		if err != nil {
			return err
		}
		if n.Type != domain.NotificationStatusUpdate || n.Status != domain.OrderStatusShipped {
			return errors.New("unexpected notification")
		}
		return nil
	})

	n := domain.Notification{
		Type:    domain.NotificationStatusUpdate,
		OrderID: "ORD-1",
		Email:   "jane@example.com",
		Status:  domain.OrderStatusShipped,
	}
	if err := publisher.Send(context.Background(), n); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if err := publisher.Send(context.Background(), domain.Notification{OrderID: "ORD-1"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.Send(ctx, n); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if err := producer.Close(); err != nil {
		t.Fatal(err)
	}
}
