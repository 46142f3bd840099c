package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
	"github.com/vladislavdragonenkov/flashcart/internal/pricing"
	"github.com/vladislavdragonenkov/flashcart/internal/service/cart"
	"github.com/vladislavdragonenkov/flashcart/internal/service/catalog"
	"github.com/vladislavdragonenkov/flashcart/internal/service/checkout"
	"github.com/vladislavdragonenkov/flashcart/internal/service/httpapi"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
	"github.com/vladislavdragonenkov/flashcart/internal/service/notification"
	"github.com/vladislavdragonenkov/flashcart/internal/service/orders"
	"github.com/vladislavdragonenkov/flashcart/internal/service/outbox"
	"github.com/vladislavdragonenkov/flashcart/internal/service/payment"
)

// Dependencies содержит собранные сервисы и фоновые воркеры приложения.
type Dependencies struct {
	Storage    *storage
	Producer   *kafka.Producer
	Dispatcher *notification.Dispatcher

	Checkout *checkout.Service
	Orders   *orders.Service
	Cart     *cart.Service
	Catalog  *catalog.Service
	Guard    *idempotency.Guard

	HTTPMetrics   *metrics.HTTPMetrics
	OutboxWorker  *outbox.Worker
	CleanupWorker *idempotency.CleanupWorker

	Logger *log.Entry
}

// NewDependencies открывает хранилище и собирает граф сервисов.
// registerer может быть nil: тогда метрики регистрируются в prometheus.DefaultRegisterer.
func NewDependencies(ctx context.Context, cfg Config, registerer prometheus.Registerer, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	store, err := initStorage(ctx, cfg, logger.WithField("layer", "storage"))
	if err != nil {
		return nil, err
	}

	producer, err := initKafkaProducer(cfg.Brokers(), logger.WithField("layer", "kafka"))
	if err != nil {
		if cfg.NotifyMode == NotifyModeKafka {
			_ = store.close()
			return nil, fmt.Errorf("%w: kafka producer: %w", domain.ErrConfiguration, err)
		}
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		producer = nil
	}

	sender, err := newNotificationSender(cfg, producer, logger)
	if err != nil {
		closeKafka(producer, logger)
		_ = store.close()
		return nil, err
	}
	dispatcher := notification.NewDispatcher(sender, logger.WithField("component", "notification-dispatcher"),
		notification.WithTimeout(cfg.NotifyTimeout),
		notification.WithMetrics(metrics.NewNotificationMetrics(registerer)),
	)

	checkoutMetrics := metrics.NewCheckoutMetricsWithRegisterer(registerer)
	engine := pricing.NewEngine(pricing.DefaultPolicy())
	payments := payment.NewSimulator(logger.WithField("component", "payment"), payment.ParseDeclineList(cfg.PaymentDeclineMethods)...)

	deps := &Dependencies{
		Storage:    store,
		Producer:   producer,
		Dispatcher: dispatcher,
		Checkout: checkout.NewService(store.tx, payments, engine, dispatcher,
			logger.WithField("component", "checkout"), checkout.WithMetrics(checkoutMetrics)),
		Orders: orders.NewService(store.orders, store.tx, cfg.StatusPolicy, dispatcher,
			logger.WithField("component", "orders"), orders.WithMetrics(checkoutMetrics)),
		Cart:        cart.NewService(store.tx, store.carts, engine, logger.WithField("component", "cart")),
		Catalog:     catalog.NewService(store.catalog, logger.WithField("component", "catalog")),
		Guard:       idempotency.NewGuard(store.idempotency, cfg.IdempotencyTTL, logger.WithField("component", "idempotency")),
		HTTPMetrics: metrics.NewHTTPMetrics(registerer),
		Logger:      logger,
	}

	deps.OutboxWorker = outbox.NewWorker(store.outbox, outboxPublisher(producer, logger), outbox.Config{
		PollInterval:   cfg.OutboxPollInterval,
		BatchSize:      cfg.OutboxBatchSize,
		MaxAttempts:    cfg.OutboxMaxAttempts,
		RetryBaseDelay: cfg.OutboxRetryDelay,
	}, outboxOptions(producer, registerer, logger)...)

	deps.CleanupWorker = idempotency.NewCleanupWorker(store.idempotency,
		idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup")),
		idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
		idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
		idempotency.WithMetrics(metrics.NewCleanupMetrics(registerer)),
	)

	return deps, nil
}

// HTTPServices собирает сервисы для HTTP-слоя.
func (d *Dependencies) HTTPServices() httpapi.Services {
	return httpapi.Services{
		Checkout: d.Checkout,
		Orders:   d.Orders,
		Cart:     d.Cart,
		Catalog:  d.Catalog,
		Guard:    d.Guard,
	}
}

// Close дожидается писем в полёте и освобождает соединения.
func (d *Dependencies) Close(ctx context.Context) {
	if err := d.Dispatcher.Shutdown(ctx); err != nil {
		d.Logger.WithError(err).Warn("notification dispatcher shutdown timed out")
	}
	closeKafka(d.Producer, d.Logger)
	if err := d.Storage.close(); err != nil {
		d.Logger.WithError(err).Warn("failed to close storage")
	}
}

func newNotificationSender(cfg Config, producer *kafka.Producer, logger *log.Entry) (domain.NotificationSender, error) {
	switch cfg.NotifyMode {
	case NotifyModeResend:
		return notification.NewResendSender(notification.ResendConfig{
			APIKey:  cfg.ResendAPIKey,
			From:    cfg.ResendFrom,
			Timeout: cfg.NotifyTimeout,
		}, nil, logger.WithField("component", "resend"))
	case NotifyModeKafka:
		if producer == nil {
			return nil, fmt.Errorf("%w: kafka notifications require a producer", domain.ErrConfiguration)
		}
		return kafka.NewNotificationPublisher(producer), nil
	default:
		return notification.NewLogSender(logger.WithField("component", "notification-log")), nil
	}
}

func outboxPublisher(producer *kafka.Producer, logger *log.Entry) domain.OutboxPublisher {
	if producer == nil {
		return outbox.NewLogPublisher(logger.WithField("component", "outbox-log"))
	}
	return kafka.NewOutboxPublisher(producer, kafka.TopicOrderEvents)
}

func outboxOptions(producer *kafka.Producer, registerer prometheus.Registerer, logger *log.Entry) []outbox.Option {
	opts := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(metrics.NewOutboxMetrics(registerer)),
	}
	if producer != nil {
		opts = append(opts, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)))
	}
	return opts
}
