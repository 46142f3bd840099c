package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 25
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// dbtx - общее подмножество *sql.DB и *sql.Tx, с которым работают репозитории.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store оборачивает SQL-подключение к PostgreSQL и выдаёт репозитории.
type Store struct {
	db         *sql.DB
	now        func() time.Time
	newOrderID domain.OrderIDGenerator
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithOrderIDGenerator подменяет генератор идентификаторов заказов.
func WithOrderIDGenerator(gen domain.OrderIDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.newOrderID = gen
		}
	}
}

// Open открывает подключение к PostgreSQL и проверяет доступность базы.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &Store{
		db: db,
		// TIMESTAMPTZ хранит микросекунды.
		now:        func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		newOrderID: domain.NewOrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// EnsureSchema применяет все up-миграции.
func (s *Store) EnsureSchema(ctx context.Context) error {
	return s.MigrateUp(ctx, 0)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) root() *scope { return &scope{store: s, q: s.db} }

// Ledger возвращает складской журнал вне транзакции.
func (s *Store) Ledger() domain.InventoryLedger { return &inventoryLedger{scope: s.root()} }

// Orders возвращает хранилище заказов вне транзакции.
func (s *Store) Orders() domain.OrderStore { return &orderStore{scope: s.root()} }

// Carts возвращает репозиторий корзин вне транзакции.
func (s *Store) Carts() domain.CartRepository { return &cartRepository{scope: s.root()} }

// Outbox возвращает outbox вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{scope: s.root()} }

// Catalog возвращает каталог.
func (s *Store) Catalog() domain.Catalog { return &catalog{scope: s.root()} }

// WithinTx выполняет fn в транзакции READ COMMITTED.
// Ошибка fn, паника или отмена ctx до COMMIT откатывают транзакцию.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&scope{store: s, q: tx, tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// scope привязывает репозитории либо к пулу, либо к открытой транзакции.
type scope struct {
	store *Store
	q     dbtx
	tx    *sql.Tx
}

func (sc *scope) Ledger() domain.InventoryLedger  { return &inventoryLedger{scope: sc} }
func (sc *scope) Orders() domain.OrderStore       { return &orderStore{scope: sc} }
func (sc *scope) Carts() domain.CartRepository    { return &cartRepository{scope: sc} }
func (sc *scope) Outbox() domain.OutboxRepository { return &outboxRepository{scope: sc} }

// atomic выполняет fn в текущей транзакции или открывает собственную.
func (sc *scope) atomic(ctx context.Context, fn func(q dbtx) error) error {
	if sc.tx != nil {
		return fn(sc.tx)
	}

	tx, err := sc.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

var (
	_ domain.Transactor = (*Store)(nil)
	_ domain.Tx         = (*scope)(nil)
)
