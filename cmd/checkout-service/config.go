package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/flashcart/internal/app"
	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

const (
	envLogLevel = "FLASHCART_LOG_LEVEL"

	envHTTPAddr    = "FLASHCART_HTTP_ADDR"
	envGRPCAddr    = "FLASHCART_GRPC_ADDR"
	envMetricsAddr = "FLASHCART_METRICS_ADDR"

	envStorageDriver       = "FLASHCART_STORAGE_DRIVER"
	envPostgresDSN         = "FLASHCART_POSTGRES_DSN"
	envPostgresAutoMigrate = "FLASHCART_POSTGRES_AUTO_MIGRATE"
	envSeedCatalog         = "FLASHCART_SEED_CATALOG"
	envKafkaBrokers        = "FLASHCART_KAFKA_BROKERS"

	envNotifyMode    = "FLASHCART_NOTIFY_MODE"
	envResendAPIKey  = "FLASHCART_RESEND_API_KEY"
	envResendFrom    = "FLASHCART_RESEND_FROM"
	envNotifyTimeout = "FLASHCART_NOTIFY_TIMEOUT"

	envStatusPolicy          = "FLASHCART_STATUS_POLICY"
	envPaymentDeclineMethods = "FLASHCART_PAYMENT_DECLINE_METHODS"

	envOutboxPollInterval = "FLASHCART_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "FLASHCART_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "FLASHCART_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "FLASHCART_OUTBOX_RETRY_DELAY"

	envIdempotencyTTL              = "FLASHCART_IDEMPOTENCY_TTL"
	envIdempotencyCleanupInterval  = "FLASHCART_IDEMPOTENCY_CLEANUP_INTERVAL"
	envIdempotencyCleanupBatchSize = "FLASHCART_IDEMPOTENCY_CLEANUP_BATCH_SIZE"

	envOTELEndpoint    = "FLASHCART_OTEL_ENDPOINT"
	envOTELSampleRate  = "FLASHCART_OTEL_SAMPLE_RATE"
	envShutdownTimeout = "FLASHCART_SHUTDOWN_TIMEOUT"
)

type envLookup func(string) (string, bool)

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются: вместо них возвращается предупреждение.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("ignore %s=%q: %v", key, raw, err))
	}
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseBool(v)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	positiveInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseInt(v, func(n int) bool { return n > 0 }, "must be > 0")
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	duration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			parsed, err := parseDuration(v, valid, rule)
			if err != nil {
				warn(key, v, err)
				return
			}
			*dst = parsed
		}
	}
	positive := func(d time.Duration) bool { return d > 0 }
	nonNegative := func(d time.Duration) bool { return d >= 0 }

	str(envHTTPAddr, &cfg.HTTPAddr)
	str(envGRPCAddr, &cfg.GRPCAddr)
	str(envMetricsAddr, &cfg.MetricsAddr)

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		driver := app.StorageDriver(strings.ToLower(strings.TrimSpace(v)))
		switch driver {
		case app.StorageDriverMemory, app.StorageDriverPostgres:
			cfg.StorageDriver = driver
		default:
			warn(envStorageDriver, v, fmt.Errorf("use memory|postgres"))
		}
	}
	str(envPostgresDSN, &cfg.PostgresDSN)
	boolean(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	boolean(envSeedCatalog, &cfg.SeedCatalog)
	str(envKafkaBrokers, &cfg.KafkaBrokers)

	if v, ok := lookup(envNotifyMode); ok && strings.TrimSpace(v) != "" {
		mode := app.NotifyMode(strings.ToLower(strings.TrimSpace(v)))
		switch mode {
		case app.NotifyModeLog, app.NotifyModeResend, app.NotifyModeKafka:
			cfg.NotifyMode = mode
		default:
			warn(envNotifyMode, v, fmt.Errorf("use log|resend|kafka"))
		}
	}
	str(envResendAPIKey, &cfg.ResendAPIKey)
	str(envResendFrom, &cfg.ResendFrom)
	duration(envNotifyTimeout, &cfg.NotifyTimeout, positive, "must be > 0")

	if v, ok := lookup(envStatusPolicy); ok && strings.TrimSpace(v) != "" {
		policy, err := domain.ParseTransitionPolicy(v)
		if err != nil {
			warn(envStatusPolicy, v, err)
		} else {
			cfg.StatusPolicy = policy
		}
	}
	if v, ok := lookup(envPaymentDeclineMethods); ok {
		cfg.PaymentDeclineMethods = strings.TrimSpace(v)
	}

	duration(envOutboxPollInterval, &cfg.OutboxPollInterval, positive, "must be > 0")
	positiveInt(envOutboxBatchSize, &cfg.OutboxBatchSize)
	positiveInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts)
	duration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegative, "must be >= 0")

	duration(envIdempotencyTTL, &cfg.IdempotencyTTL, positive, "must be > 0")
	duration(envIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive, "must be > 0")
	positiveInt(envIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize)

	str(envOTELEndpoint, &cfg.Telemetry.Endpoint)
	if v, ok := lookup(envOTELSampleRate); ok && strings.TrimSpace(v) != "" {
		rate, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		switch {
		case err != nil:
			warn(envOTELSampleRate, v, err)
		case rate < 0 || rate > 1:
			warn(envOTELSampleRate, v, fmt.Errorf("must be between 0 and 1"))
		default:
			cfg.Telemetry.SampleRate = rate
		}
	}
	duration(envShutdownTimeout, &cfg.ShutdownTimeout, positive, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%d %s", value, rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if !valid(value) {
		return 0, fmt.Errorf("%s %s", value, rule)
	}
	return value, nil
}
