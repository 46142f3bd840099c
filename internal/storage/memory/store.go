package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// Store - in-memory хранилище для локальной разработки и тестов.
//
// Все репозитории разделяют один мьютекс, поэтому WithinTx сериализует транзакции
// целиком и откатывает изменения журналом обратных операций.
type Store struct {
	mu sync.Mutex

	now        func() time.Time
	newOrderID domain.OrderIDGenerator

	products  map[string]*domain.Product
	orders    map[string]*orderRecord
	carts     map[string][]cartRecord
	outbox    map[string]*outboxRecord
	outboxSeq int64

	shared *scope
}

// Option настраивает Store.
type Option func(*Store)

// WithClock подменяет источник времени (для тестов).
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

// NewStore создаёт пустое хранилище.
func NewStore(opts ...Option) *Store {
	s := &Store{
		now:        func() time.Time { return time.Now().UTC() },
		newOrderID: domain.NewOrderID,
		products:   make(map[string]*domain.Product),
		orders:     make(map[string]*orderRecord),
		carts:      make(map[string][]cartRecord),
		outbox:     make(map[string]*outboxRecord),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.shared = &scope{store: s}
	return s
}

// Ledger возвращает складской журнал вне транзакции.
func (s *Store) Ledger() domain.InventoryLedger { return &inventoryLedger{scope: s.shared} }

// Orders возвращает хранилище заказов вне транзакции.
func (s *Store) Orders() domain.OrderStore { return &orderStore{scope: s.shared} }

// Carts возвращает репозиторий корзин вне транзакции.
func (s *Store) Carts() domain.CartRepository { return &cartRepository{scope: s.shared} }

// Outbox возвращает outbox вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository { return &outboxRepository{scope: s.shared} }

// Catalog возвращает каталог.
func (s *Store) Catalog() domain.Catalog { return &catalog{scope: s.shared} }

// WithinTx выполняет fn под общим мьютексом. Ошибка fn, паника или отмена ctx
// до фиксации откатывают все изменения, сделанные через tx.
func (s *Store) WithinTx(ctx context.Context, fn func(tx domain.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sc := &scope{store: s, inTx: true, ctx: ctx}
	defer func() {
		if p := recover(); p != nil {
			sc.rollback()
			panic(p)
		}
	}()

	if err := fn(sc); err != nil {
		sc.rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		sc.rollback()
		return err
	}
	return nil
}

// scope различает вызовы внутри транзакции (мьютекс уже захвачен) и одиночные вызовы.
type scope struct {
	store *Store
	inTx  bool
	ctx   context.Context
	undo  []func()
}

func (sc *scope) Ledger() domain.InventoryLedger  { return &inventoryLedger{scope: sc} }
func (sc *scope) Orders() domain.OrderStore       { return &orderStore{scope: sc} }
func (sc *scope) Carts() domain.CartRepository    { return &cartRepository{scope: sc} }
func (sc *scope) Outbox() domain.OutboxRepository { return &outboxRepository{scope: sc} }

// lock захватывает мьютекс хранилища, если вызов идёт вне транзакции.
func (sc *scope) lock() func() {
	if sc.inTx {
		return func() {}
	}
	sc.store.mu.Lock()
	return sc.store.mu.Unlock
}

// onRollback регистрирует обратную операцию; вне транзакции изменения сразу окончательные.
func (sc *scope) onRollback(fn func()) {
	if sc.inTx {
		sc.undo = append(sc.undo, fn)
	}
}

func (sc *scope) rollback() {
	for i := len(sc.undo) - 1; i >= 0; i-- {
		sc.undo[i]()
	}
	sc.undo = nil
}

var (
	_ domain.Transactor = (*Store)(nil)
	_ domain.Tx         = (*scope)(nil)
)
