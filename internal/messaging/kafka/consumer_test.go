package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

type mockConsumerGroup struct {
	consumeFn func(context.Context, []string, sarama.ConsumerGroupHandler) error
	errorsCh  chan error
	closeFn   func() error
}

func (m *mockConsumerGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	if m.consumeFn != nil {
		return m.consumeFn(ctx, topics, handler)
	}
	return nil
}

func (m *mockConsumerGroup) Errors() <-chan error {
	return m.errorsCh
}

func (m *mockConsumerGroup) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	if m.errorsCh != nil {
		close(m.errorsCh)
	}
	return nil
}

func (m *mockConsumerGroup) Pause(map[string][]int32)  {}
func (m *mockConsumerGroup) Resume(map[string][]int32) {}
func (m *mockConsumerGroup) PauseAll()                 {}
func (m *mockConsumerGroup) ResumeAll()                {}

type mockSession struct {
	ctx    context.Context
	marked []*sarama.ConsumerMessage
}

func (m *mockSession) Claims() map[string][]int32               { return nil }
func (m *mockSession) MemberID() string                         { return "member" }
func (m *mockSession) GenerationID() int32                      { return 1 }
func (m *mockSession) MarkOffset(string, int32, int64, string)  {}
func (m *mockSession) Commit()                                  {}
func (m *mockSession) ResetOffset(string, int32, int64, string) {}
func (m *mockSession) Context() context.Context                 { return m.ctx }
func (m *mockSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	m.marked = append(m.marked, msg)
}

type mockClaim struct {
	messages chan *sarama.ConsumerMessage
}

func (m *mockClaim) Topic() string                            { return TopicNotifications }
func (m *mockClaim) Partition() int32                         { return 0 }
func (m *mockClaim) InitialOffset() int64                     { return 0 }
func (m *mockClaim) HighWaterMarkOffset() int64               { return 0 }
func (m *mockClaim) Messages() <-chan *sarama.ConsumerMessage { return m.messages }

type recordingSender struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (s *recordingSender) Send(_ context.Context, n domain.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return s.err
}

func testConsumer(handler MessageHandler, dlq *Producer, maxRetries int) *Consumer {
	return newConsumer(&mockConsumerGroup{}, ConsumerConfig{GroupID: "test", Topics: []string{TopicNotifications}, MaxRetries: maxRetries}, handler, dlq)
}

func notificationMessage(t *testing.T) *sarama.ConsumerMessage {
	t.Helper()
	value, err := json.Marshal(domain.Notification{Type: domain.NotificationConfirmation, OrderID: "ORD-1", Email: "jane@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	return &sarama.ConsumerMessage{Topic: TopicNotifications, Offset: 7, Key: []byte("ORD-1"), Value: value}
}

func TestConsumerStartStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	consumeCalls := 0
	errorsCh := make(chan error, 1)
	group := &mockConsumerGroup{
		errorsCh: errorsCh,
		consumeFn: func(context.Context, []string, sarama.ConsumerGroupHandler) error {
			consumeCalls++
			cancel()
			return nil
		},
	}
	consumer := newConsumer(group, ConsumerConfig{Topics: []string{"topic-a"}}, func(context.Context, *sarama.ConsumerMessage) error { return nil }, nil)

	errorsCh <- errors.New("background error")
	if err := consumer.Start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := consumer.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if consumeCalls == 0 {
		t.Fatal("expected consume call")
	}
}

func TestConsumeClaim_DeliversNotification(t *testing.T) {
	sender := &recordingSender{}
	consumer := testConsumer(NotificationHandler(sender), nil, 3)

	session := &mockSession{ctx: context.Background()}
	claim := &mockClaim{messages: make(chan *sarama.ConsumerMessage, 1)}
	claim.messages <- notificationMessage(t)
	close(claim.messages)

	if err := consumer.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("ConsumeClaim failed: %v", err)
	}
	if len(session.marked) != 1 {
		t.Fatalf("expected one marked message, got %d", len(session.marked))
	}
	if len(sender.sent) != 1 || sender.sent[0].OrderID != "ORD-1" {
		t.Fatalf("unexpected sent notifications: %+v", sender.sent)
	}
}

func TestHandleMessageWithRetry(t *testing.T) {
	t.Run("retries then succeeds", func(t *testing.T) {
		attempts := 0
		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			if attempts < 3 {
				return errors.New("temporary")
			}
			return nil
		}, nil, 3)
		if err := consumer.handleMessageWithRetry(context.Background(), notificationMessage(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("retry header reduces attempts", func(t *testing.T) {
		attempts := 0
		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			attempts++
			return errors.New("temporary")
		}, nil, 3)
		msg := notificationMessage(t)
		msg.Headers = []*sarama.RecordHeader{{Key: []byte(HeaderRetryCount), Value: []byte("1")}}
		if err := consumer.handleMessageWithRetry(context.Background(), msg); err == nil {
			t.Fatal("expected error without DLQ")
		}
		if attempts != 2 {
			t.Fatalf("expected 2 attempts, got %d", attempts)
		}
	})

	t.Run("exhausted goes to dlq", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
			var letter ConsumerDeadLetter
			if err := json.Unmarshal(val, &letter); err != nil {
				return err
			}
			if letter.OriginalTopic != TopicNotifications || letter.RetryCount != 2 || letter.ErrorMessage != "provider down" {
				return errors.New("unexpected dead letter")
			}
			return nil
		})
		dlq := NewProducerFromSync(mockProducer, log.WithField("test", "dlq"))
		consumer := testConsumer(func(context.Context, *sarama.ConsumerMessage) error {
			return errors.New("provider down")
		}, dlq, 2)

		if err := consumer.handleMessageWithRetry(context.Background(), notificationMessage(t)); err != nil {
			t.Fatalf("message must be acknowledged after DLQ, got %v", err)
		}
		if err := mockProducer.Close(); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("malformed skips retries", func(t *testing.T) {
		mockProducer := mocks.NewSyncProducer(t, nil)
		mockProducer.ExpectSendMessageAndSucceed()
		sender := &recordingSender{}
		consumer := testConsumer(NotificationHandler(sender), NewProducerFromSync(mockProducer, nil), 5)

		msg := &sarama.ConsumerMessage{Topic: TopicNotifications, Value: []byte("{not json")}
		if err := consumer.handleMessageWithRetry(context.Background(), msg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(sender.sent) != 0 {
			t.Fatal("malformed message must not reach sender")
		}
		if err := mockProducer.Close(); err != nil {
			t.Fatal(err)
		}
	})
}

func TestExtractReplay(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("consumer dead letter", func(t *testing.T) {
		value, _ := json.Marshal(ConsumerDeadLetter{OriginalTopic: TopicNotifications, OriginalKey: "ORD-1", OriginalValue: `{"type":"confirmation"}`})
		replay, ok, err := ExtractReplay(&sarama.ConsumerMessage{Value: value}, TopicOrderEvents, now)
		if err != nil || !ok {
			t.Fatalf("expected replay, ok=%v err=%v", ok, err)
		}
		if replay.Topic != TopicNotifications || replay.Key != "ORD-1" || string(replay.Value) != `{"type":"confirmation"}` {
			t.Fatalf("unexpected replay %+v", replay)
		}
	})

	t.Run("outbox dead letter", func(t *testing.T) {
		letter, _ := json.Marshal(map[string]any{
			"outboxId":    "evt-1",
			"aggregateId": "ORD-1",
			"eventType":   domain.EventOrderCreated,
			"payload":     json.RawMessage(`{"orderId":"ORD-1"}`),
		})
		value, _ := json.Marshal(OutboxEnvelope{ID: "evt-1", AggregateID: "ORD-1", Payload: letter})

		replay, ok, err := ExtractReplay(&sarama.ConsumerMessage{Value: value}, TopicOrderEvents, now)
		if err != nil || !ok {
			t.Fatalf("expected replay, ok=%v err=%v", ok, err)
		}
		var envelope OutboxEnvelope
		if err := json.Unmarshal(replay.Value, &envelope); err != nil {
			t.Fatal(err)
		}
		if replay.Topic != TopicOrderEvents || replay.Key != "ORD-1" || string(envelope.Payload) != `{"orderId":"ORD-1"}` {
			t.Fatalf("unexpected replay %+v", envelope)
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		_, ok, err := ExtractReplay(&sarama.ConsumerMessage{Value: []byte(`"plain"`)}, TopicOrderEvents, now)
		if ok || err != nil {
			t.Fatalf("expected skip, ok=%v err=%v", ok, err)
		}
	})
}
