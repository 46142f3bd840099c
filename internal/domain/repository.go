package domain

import (
	"context"
	"time"
)

// InventoryLedger владеет остатками товаров.
type InventoryLedger interface {
	// Reserve атомарно проверяет остаток и списывает quantity единиц.
	// Возвращает ErrProductNotFound или *OutOfStockError; частичного списания не бывает.
	Reserve(ctx context.Context, productID string, quantity int) (Reservation, error)
}

// OrderStore описывает требования к хранилищу агрегата заказа.
type OrderStore interface {
	// Create выдаёт идентификатор и сохраняет заказ, позиции и первую запись истории одним целым.
	Create(ctx context.Context, draft OrderDraft) (Order, error)
	// AppendStatus меняет статус и дописывает историю в одной транзакции.
	// guard получает текущий статус под блокировкой строки.
	AppendStatus(ctx context.Context, orderID string, status OrderStatus, note string, guard TransitionGuard) (StatusChange, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, orderID string) (Order, error)
	// ListByUser возвращает заказы пользователя, новые первыми.
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	// History возвращает журнал статусов в хронологическом порядке.
	History(ctx context.Context, orderID string) ([]StatusLogEntry, error)
}

// CartRepository хранит серверную копию корзины.
type CartRepository interface {
	// Replace полностью заменяет корзину пользователя.
	Replace(ctx context.Context, userID string, items []CartItem) error
	// List возвращает позиции корзины вместе с карточками товаров.
	List(ctx context.Context, userID string) ([]CartLine, error)
	// Clear удаляет все позиции пользователя и возвращает их количество.
	Clear(ctx context.Context, userID string) (int, error)
}

// Catalog - read-only доступ к каталогу.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	ListProducts(ctx context.Context, query ProductQuery) (ProductPage, error)
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	// Delete освобождает ключ, чтобы повтор запроса выполнился заново.
	Delete(ctx context.Context, key string) error
	DeleteExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// Tx - репозитории, привязанные к одной транзакции хранилища.
type Tx interface {
	Ledger() InventoryLedger
	Orders() OrderStore
	Carts() CartRepository
	Outbox() OutboxRepository
}

// Transactor выполняет fn в транзакции: ошибка fn или отмена ctx откатывают все изменения.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
