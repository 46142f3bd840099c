package kafka

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/IBM/sarama"
)

// ReplayMessage - сообщение, восстановленное из DLQ для повторной публикации.
type ReplayMessage struct {
	Topic string
	Key   string
	Value []byte
}

// outboxDeadLetter повторяет формат, который пишет outbox worker при исчерпании попыток.
type outboxDeadLetter struct {
	OutboxID      string          `json:"outboxId"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     string          `json:"eventType"`
	Payload       json.RawMessage `json:"payload"`
}

// ExtractReplay восстанавливает исходное сообщение из DLQ.
// ok == false означает, что сообщение не похоже ни на один известный формат DLQ.
func ExtractReplay(msg *sarama.ConsumerMessage, defaultTopic string, now time.Time) (ReplayMessage, bool, error) {
	var consumerLetter ConsumerDeadLetter
	if err := json.Unmarshal(msg.Value, &consumerLetter); err == nil && consumerLetter.OriginalValue != "" {
		topic := strings.TrimSpace(consumerLetter.OriginalTopic)
		if topic == "" {
			topic = defaultTopic
		}
		return ReplayMessage{
			Topic: topic,
			Key:   consumerLetter.OriginalKey,
			Value: []byte(consumerLetter.OriginalValue),
		}, true, nil
	}

	var envelope OutboxEnvelope
	if err := json.Unmarshal(msg.Value, &envelope); err != nil || len(envelope.Payload) == 0 {
		return ReplayMessage{}, false, nil
	}

	var letter outboxDeadLetter
	if err := json.Unmarshal(envelope.Payload, &letter); err != nil {
		return ReplayMessage{}, false, fmt.Errorf("decode outbox dlq payload: %w", err)
	}
	if len(letter.Payload) == 0 {
		return ReplayMessage{}, false, fmt.Errorf("outbox dlq payload does not contain original event payload")
	}

	replay := OutboxEnvelope{
		ID:            firstNonEmpty(letter.OutboxID, envelope.ID),
		AggregateType: firstNonEmpty(letter.AggregateType, envelope.AggregateType),
		AggregateID:   firstNonEmpty(letter.AggregateID, envelope.AggregateID),
		EventType:     firstNonEmpty(letter.EventType, envelope.EventType),
		Payload:       letter.Payload,
		PublishedAt:   now,
	}
	encoded, err := json.Marshal(replay)
	if err != nil {
		return ReplayMessage{}, false, fmt.Errorf("encode replay envelope: %w", err)
	}
	return ReplayMessage{Topic: defaultTopic, Key: replay.Key(), Value: encoded}, true, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return value
		}
	}
	return ""
}
