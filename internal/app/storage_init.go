package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/memory"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/postgres"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/seed"
)

// storage - репозитории выбранного драйвера.
type storage struct {
	tx          domain.Transactor
	orders      domain.OrderStore
	carts       domain.CartRepository
	catalog     domain.Catalog
	outbox      domain.OutboxRepository
	idempotency domain.IdempotencyRepository
	ping        func(ctx context.Context) error
	close       func() error
}

func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory, "":
		return initMemoryStorage(ctx, cfg, logger)
	case StorageDriverPostgres:
		return initPostgresStorage(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("%w: unsupported storage driver %q", domain.ErrConfiguration, cfg.StorageDriver)
	}
}

func initMemoryStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	store := memory.NewStore()
	if cfg.SeedCatalog {
		n, err := seed.Apply(ctx, seed.MemoryWriter{Store: store}, time.Now().UTC())
		if err != nil {
			return nil, err
		}
		logger.WithField("products", n).Info("catalog seeded")
	}
	logger.Warn("using in-memory storage: data is lost on restart")
	return &storage{
		tx:          store,
		orders:      store.Orders(),
		carts:       store.Carts(),
		catalog:     store.Catalog(),
		outbox:      store.Outbox(),
		idempotency: memory.NewIdempotencyRepository(),
		ping:        func(context.Context) error { return nil },
		close:       func() error { return nil },
	}, nil
}

func initPostgresStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storage, error) {
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", domain.ErrConfiguration)
	}
	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if cfg.PostgresAutoMigrate {
		if err := store.MigrateUp(ctx, 0); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		logger.Info("postgres migrations applied")
	}
	if cfg.SeedCatalog {
		n, err := seed.Apply(ctx, store, time.Now().UTC())
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		logger.WithField("products", n).Info("catalog seeded")
	}
	return &storage{
		tx:          store,
		orders:      store.Orders(),
		carts:       store.Carts(),
		catalog:     store.Catalog(),
		outbox:      store.Outbox(),
		idempotency: postgres.NewIdempotencyRepository(store),
		ping:        store.Ping,
		close:       store.Close,
	}, nil
}
