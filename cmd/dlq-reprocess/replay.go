package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/messaging/kafka"
)

// headerReplayedFrom помечает сообщения, переотправленные из DLQ.
const headerReplayedFrom = "x-replayed-from"

var errMissingPublisher = errors.New("publisher is required in execute mode")

type offsetClient interface {
	GetOffset(topic string, partition int32, time int64) (int64, error)
	Partitions(topic string) ([]int32, error)
	Close() error
}

type partitionConsumer interface {
	Messages() <-chan *sarama.ConsumerMessage
	Errors() <-chan *sarama.ConsumerError
	Close() error
}

type partitionSource interface {
	ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error)
	Close() error
}

type saramaSource struct {
	consumer sarama.Consumer
}

func (s saramaSource) ConsumePartition(topic string, partition int32, offset int64) (partitionConsumer, error) {
	pc, err := s.consumer.ConsumePartition(topic, partition, offset)
	if err != nil {
		return nil, err
	}
	return pc, nil
}

func (s saramaSource) Close() error {
	if s.consumer == nil {
		return nil
	}
	return s.consumer.Close()
}

type summary struct {
	processed int
	replayed  int
	skipped   int
}

func (s *summary) add(other summary) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

func (s summary) mode(execute bool) string {
	if execute {
		return "execute"
	}
	return "dry-run"
}

// replayer читает DLQ по партициям в пределах [oldest, newest) на момент старта.
type replayer struct {
	cfg       config
	offsets   offsetClient
	consumer  partitionSource
	publisher *kafka.Producer
	now       func() time.Time
	logger    *log.Entry
}

func (r *replayer) Run(ctx context.Context) (summary, error) {
	var total summary
	if r.offsets == nil || r.consumer == nil {
		return total, fmt.Errorf("kafka client and consumer are required")
	}
	if r.cfg.execute && r.publisher == nil {
		return total, errMissingPublisher
	}

	partitions, err := r.offsets.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.WithField("topic", r.cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		remaining := r.cfg.limit - total.processed
		if remaining <= 0 {
			break
		}
		part, err := r.replayPartition(ctx, partition, remaining)
		total.add(part)
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"mode":      total.mode(r.cfg.execute),
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

func (r *replayer) replayPartition(ctx context.Context, partition int32, limit int) (summary, error) {
	var part summary
	topic := r.cfg.sourceTopic

	oldest, err := r.offsets.GetOffset(topic, partition, sarama.OffsetOldest)
	if err != nil {
		return part, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.offsets.GetOffset(topic, partition, sarama.OffsetNewest)
	if err != nil {
		return part, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}
	if newest <= oldest {
		return part, nil
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}

	pc, err := r.consumer.ConsumePartition(topic, partition, start)
	if err != nil {
		return part, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for part.processed < limit {
		select {
		case <-ctx.Done():
			return part, ctx.Err()
		case <-idle.C:
			return part, nil
		case cerr, ok := <-pc.Errors():
			if ok && cerr != nil {
				return part, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= newest {
				return part, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			part.processed++
			if err := r.replayOne(msg); err != nil {
				if errors.Is(err, errSkip) {
					part.skipped++
				} else {
					return part, err
				}
			} else {
				part.replayed++
			}
			if msg.Offset+1 >= newest {
				return part, nil
			}
		}
	}
	return part, nil
}

var errSkip = errors.New("skip message")

// replayOne возвращает errSkip для сообщений, которые нельзя восстановить.
func (r *replayer) replayOne(msg *sarama.ConsumerMessage) error {
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	replay, ok, err := kafka.ExtractReplay(msg, r.cfg.targetTopic, r.now())
	if err != nil {
		entry.WithError(err).Warn("skip unsupported dlq message")
		return errSkip
	}
	if !ok {
		return errSkip
	}

	if !r.cfg.execute {
		entry.WithFields(log.Fields{"target_topic": replay.Topic, "key": replay.Key}).Info("dlq replay candidate")
		return nil
	}
	header := sarama.RecordHeader{Key: []byte(headerReplayedFrom), Value: []byte(r.cfg.sourceTopic)}
	if err := r.publisher.PublishRaw(replay.Topic, replay.Key, replay.Value, header); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	return nil
}
