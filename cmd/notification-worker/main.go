// notification-worker читает запросы на письма из Kafka и отправляет их через Resend.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/health"
	"github.com/vladislavdragonenkov/flashcart/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
	"github.com/vladislavdragonenkov/flashcart/internal/service/notification"
	"github.com/vladislavdragonenkov/flashcart/internal/version"
)

const (
	envKafkaBrokers = "FLASHCART_KAFKA_BROKERS"
	envGroupID      = "FLASHCART_NOTIFY_GROUP_ID"
	envMaxRetries   = "FLASHCART_NOTIFY_MAX_RETRIES"
	envSendTimeout  = "FLASHCART_NOTIFY_TIMEOUT"
	envResendAPIKey = "FLASHCART_RESEND_API_KEY"
	envResendFrom   = "FLASHCART_RESEND_FROM"
	envMetricsAddr  = "FLASHCART_WORKER_METRICS_ADDR"

	defaultGroupID     = "flashcart-notification-worker"
	defaultMaxRetries  = 3
	defaultSendTimeout = 15 * time.Second
	defaultMetricsAddr = ":9091"
)

type workerConfig struct {
	brokers      []string
	groupID      string
	maxRetries   int
	sendTimeout  time.Duration
	resendAPIKey string
	resendFrom   string
	metricsAddr  string
}

func readWorkerConfig(lookup func(string) (string, bool)) (workerConfig, error) {
	cfg := workerConfig{
		groupID:     defaultGroupID,
		maxRetries:  defaultMaxRetries,
		sendTimeout: defaultSendTimeout,
		metricsAddr: defaultMetricsAddr,
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	for _, b := range strings.Split(get(envKafkaBrokers), ",") {
		if b = strings.TrimSpace(b); b != "" {
			cfg.brokers = append(cfg.brokers, b)
		}
	}
	if len(cfg.brokers) == 0 {
		return workerConfig{}, fmt.Errorf("%w: %s is required", domain.ErrConfiguration, envKafkaBrokers)
	}
	if v := get(envGroupID); v != "" {
		cfg.groupID = v
	}
	if v := get(envMaxRetries); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return workerConfig{}, fmt.Errorf("%w: %s must be a positive integer", domain.ErrConfiguration, envMaxRetries)
		}
		cfg.maxRetries = n
	}
	if v := get(envSendTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return workerConfig{}, fmt.Errorf("%w: %s must be a positive duration", domain.ErrConfiguration, envSendTimeout)
		}
		cfg.sendTimeout = d
	}
	cfg.resendAPIKey = get(envResendAPIKey)
	cfg.resendFrom = get(envResendFrom)
	if v := get(envMetricsAddr); v != "" {
		cfg.metricsAddr = v
	}
	return cfg, nil
}

// newSender выбирает Resend при наличии ключа, иначе пишет письма в лог.
func newSender(cfg workerConfig, registerer prometheus.Registerer, logger *log.Entry) (domain.NotificationSender, error) {
	var sender domain.NotificationSender
	if cfg.resendAPIKey == "" {
		logger.Warn("resend api key is not configured, notifications will only be logged")
		sender = notification.NewLogSender(logger.WithField("component", "notification-log"))
	} else {
		resend, err := notification.NewResendSender(notification.ResendConfig{
			APIKey:  cfg.resendAPIKey,
			From:    cfg.resendFrom,
			Timeout: cfg.sendTimeout,
		}, nil, logger.WithField("component", "resend"))
		if err != nil {
			return nil, err
		}
		sender = resend
	}
	return &meteredSender{next: sender, metrics: metrics.NewNotificationMetrics(registerer), timeout: cfg.sendTimeout}, nil
}

// meteredSender считает отправки и ограничивает каждую таймаутом.
type meteredSender struct {
	next    domain.NotificationSender
	metrics *metrics.NotificationMetrics
	timeout time.Duration
}

func (s *meteredSender) Send(ctx context.Context, n domain.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	done := s.metrics.Started(string(n.Type))
	err := s.next.Send(ctx, n)
	done(err)
	return err
}

// messageConsumer - то, что нужно run от kafka.Consumer.
type messageConsumer interface {
	Start(ctx context.Context) error
	Stop() error
}

func run(ctx context.Context, consumer messageConsumer, logger *log.Entry) error {
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем consumer")
	return consumer.Stop()
}

func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	logger := log.WithField("component", "notification-worker")

	cfg, err := readWorkerConfig(os.LookupEnv)
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sender, err := newSender(cfg, prometheus.DefaultRegisterer, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to build notification sender")
	}

	dlq, err := kafka.NewProducer(cfg.brokers)
	if err != nil {
		logger.WithError(err).Fatal("failed to create dlq producer")
	}
	defer dlq.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:    cfg.brokers,
		GroupID:    cfg.groupID,
		Topics:     []string{kafka.TopicNotifications},
		MaxRetries: cfg.maxRetries,
	}, kafka.NotificationHandler(sender), dlq)
	if err != nil {
		logger.WithError(err).Fatal("failed to create kafka consumer")
	}

	checks := health.NewHandler(version.GetVersion())
	checks.RegisterChecker("kafka", health.NewCriticalChecker("kafka", func(context.Context) error { return dlq.Ping() }))
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", checks)
	mux.HandleFunc("/livez", health.LivenessHandler)
	srv := &http.Server{Addr: cfg.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	logger.WithFields(log.Fields{
		"version": version.String(),
		"brokers": cfg.brokers,
		"group":   cfg.groupID,
		"topic":   kafka.TopicNotifications,
	}).Info("запускаем notification-worker")

	if err := run(ctx, consumer, logger); err != nil {
		logger.WithError(err).Error("consumer stopped with error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	logger.Info("notification-worker остановлен")
}
