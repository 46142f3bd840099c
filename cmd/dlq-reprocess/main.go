package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vladislavdragonenkov/flashcart/internal/messaging/kafka"
)

const (
	defaultReplayLimit = 100
	defaultIdleTimeout = 2 * time.Second
	envKafkaBrokers    = "FLASHCART_KAFKA_BROKERS"
)

type config struct {
	brokers     []string
	sourceTopic string
	targetTopic string
	limit       int
	execute     bool
	fromNewest  bool
	idleTimeout time.Duration
}

func (c config) validate() error {
	switch {
	case len(c.brokers) == 0:
		return fmt.Errorf("kafka brokers are required (--brokers or %s)", envKafkaBrokers)
	case strings.TrimSpace(c.sourceTopic) == "":
		return fmt.Errorf("source-topic is required")
	case strings.TrimSpace(c.targetTopic) == "":
		return fmt.Errorf("target-topic is required")
	case c.limit <= 0:
		return fmt.Errorf("limit must be > 0")
	case c.idleTimeout <= 0:
		return fmt.Errorf("idle-timeout must be > 0")
	}
	return nil
}

// connector открывает соединения с Kafka; в тестах подменяется заглушками.
type connector func(cfg config) (*session, error)

// session - ресурсы одного запуска. publisher равен nil в режиме dry-run.
type session struct {
	offsets   offsetClient
	consumer  partitionSource
	publisher *kafka.Producer
}

func (s *session) Close() {
	if s.publisher != nil {
		_ = s.publisher.Close()
	}
	if s.consumer != nil {
		_ = s.consumer.Close()
	}
	if s.offsets != nil {
		_ = s.offsets.Close()
	}
}

func connectKafka(cfg config) (*session, error) {
	consumerConfig := sarama.NewConfig()
	consumerConfig.Consumer.Return.Errors = true

	client, err := sarama.NewClient(cfg.brokers, consumerConfig)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	consumer, err := sarama.NewConsumerFromClient(client)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	s := &session{offsets: client, consumer: saramaSource{consumer: consumer}}
	if !cfg.execute {
		return s, nil
	}

	producer, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.publisher = producer
	return s, nil
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(connectKafka, os.LookupEnv).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(connect connector, lookup func(string) (string, bool)) *cobra.Command {
	var (
		brokersRaw string
		cfg        config
	)

	cmd := &cobra.Command{
		Use:          "dlq-reprocess",
		Short:        "Переотправка сообщений из DLQ в исходные топики (по умолчанию dry-run)",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(brokersRaw) == "" {
				brokersRaw, _ = lookup(envKafkaBrokers)
			}
			cfg.brokers = parseBrokers(brokersRaw)
			if err := cfg.validate(); err != nil {
				return err
			}

			s, err := connect(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			r := &replayer{
				cfg:       cfg,
				offsets:   s.offsets,
				consumer:  s.consumer,
				publisher: s.publisher,
				now:       func() time.Time { return time.Now().UTC() },
				logger:    log.WithField("component", "dlq-reprocess"),
			}
			sum, err := r.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("dlq replay failed: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: processed=%d replayed=%d skipped=%d\n", sum.mode(cfg.execute), sum.processed, sum.replayed, sum.skipped)
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&brokersRaw, "brokers", "", "Kafka brokers as comma-separated list (fallback: "+envKafkaBrokers+")")
	flags.StringVar(&cfg.sourceTopic, "source-topic", kafka.TopicDeadLetterQueue, "DLQ source topic")
	flags.StringVar(&cfg.targetTopic, "target-topic", kafka.TopicOrderEvents, "fallback topic for replay")
	flags.IntVar(&cfg.limit, "limit", defaultReplayLimit, "max number of messages to scan")
	flags.BoolVar(&cfg.execute, "execute", false, "publish replayed messages; default is dry-run")
	flags.BoolVar(&cfg.fromNewest, "from-newest", false, "scan latest messages first (bounded by limit)")
	flags.DurationVar(&cfg.idleTimeout, "idle-timeout", defaultIdleTimeout, "idle timeout per partition")
	return cmd
}

func parseBrokers(raw string) []string {
	chunks := strings.Split(raw, ",")
	brokers := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if broker := strings.TrimSpace(chunk); broker != "" {
			brokers = append(brokers, broker)
		}
	}
	return brokers
}
