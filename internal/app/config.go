package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/telemetry"
)

// StorageDriver выбирает реализацию хранилища.
type StorageDriver string

const (
	StorageDriverMemory   StorageDriver = "memory"
	StorageDriverPostgres StorageDriver = "postgres"
)

// NotifyMode выбирает способ доставки писем.
type NotifyMode string

const (
	// NotifyModeLog только пишет письма в лог.
	NotifyModeLog NotifyMode = "log"
	// NotifyModeResend отправляет письма напрямую через Resend.
	NotifyModeResend NotifyMode = "resend"
	// NotifyModeKafka ставит письма в очередь notification-worker.
	NotifyModeKafka NotifyMode = "kafka"
)

// Config описывает настройки запуска checkout-service.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       StorageDriver
	PostgresDSN         string
	PostgresAutoMigrate bool
	SeedCatalog         bool

	// KafkaBrokers - список брокеров через запятую; пустой отключает Kafka.
	KafkaBrokers string

	NotifyMode    NotifyMode
	ResendAPIKey  string
	ResendFrom    string
	NotifyTimeout time.Duration

	StatusPolicy domain.TransitionPolicy
	// PaymentDeclineMethods - способы оплаты через запятую, которые симулятор отклоняет.
	PaymentDeclineMethods string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	IdempotencyTTL              time.Duration
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int

	Telemetry       telemetry.Config
	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает настройки для локального запуска без внешней инфраструктуры.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:    ":8080",
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",

		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		SeedCatalog:         true,

		NotifyMode:    NotifyModeLog,
		NotifyTimeout: 15 * time.Second,

		StatusPolicy:          domain.PolicyPermissive,
		PaymentDeclineMethods: "test_decline",

		OutboxPollInterval: time.Second,
		OutboxBatchSize:    100,
		OutboxMaxAttempts:  3,
		OutboxRetryDelay:   50 * time.Millisecond,

		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,

		Telemetry: telemetry.Config{
			ServiceName: "flashcart-checkout",
			SampleRate:  1,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// Brokers разбирает KafkaBrokers.
func (c Config) Brokers() []string {
	return splitList(c.KafkaBrokers)
}

// Validate проверяет согласованность настроек до открытия соединений.
func (c Config) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return fmt.Errorf("%w: postgres storage requires POSTGRES_DSN", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unsupported storage driver %q (use memory|postgres)", domain.ErrConfiguration, c.StorageDriver)
	}

	switch c.NotifyMode {
	case NotifyModeLog:
	case NotifyModeResend:
		if strings.TrimSpace(c.ResendAPIKey) == "" {
			return fmt.Errorf("%w: resend notifications require RESEND_API_KEY", domain.ErrConfiguration)
		}
	case NotifyModeKafka:
		if len(c.Brokers()) == 0 {
			return fmt.Errorf("%w: kafka notifications require KAFKA_BROKERS", domain.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unsupported notify mode %q (use log|resend|kafka)", domain.ErrConfiguration, c.NotifyMode)
	}

	if _, err := domain.ParseTransitionPolicy(string(c.StatusPolicy)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	return nil
}

func splitList(raw string) []string {
	chunks := strings.Split(raw, ",")
	out := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if v := strings.TrimSpace(chunk); v != "" {
			out = append(out, v)
		}
	}
	return out
}
