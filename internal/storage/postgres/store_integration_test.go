package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

func TestStore_LedgerReserve(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	res, err := store.Ledger().Reserve(ctx, "p-1", 3)
	require.NoError(t, err)
	assert.Equal(t, "Wireless Mouse", res.Name)
	assert.Equal(t, 7, res.Remaining)
	assert.True(t, res.UnitPrice.Equal(domain.MustMoney("25.00")))

	_, err = store.Ledger().Reserve(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = store.Ledger().Reserve(ctx, "p-2", 5)
	var oos *domain.OutOfStockError
	require.ErrorAs(t, err, &oos)
	assert.Equal(t, 1, oos.Available)
}

func TestStore_LedgerConcurrentLastUnit(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(tx domain.Tx) error {
				_, err := tx.Ledger().Reserve(ctx, "p-2", 1)
				return err
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrOutOfStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	p, err := store.Catalog().GetProduct(ctx, "p-2")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Stock)
}

func TestStore_WithinTxRollsBack(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	require.NoError(t, store.Carts().Replace(ctx, "user-1", []domain.CartItem{{ProductID: "p-1", Quantity: 1}}))

	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if _, err := tx.Ledger().Reserve(ctx, "p-1", 2); err != nil {
			return err
		}
		if _, err := tx.Orders().Create(ctx, integrationDraft("user-1")); err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "x", EventType: domain.EventOrderCreated, Payload: []byte(`{}`)}); err != nil {
			return err
		}
		if _, err := tx.Carts().Clear(ctx, "user-1"); err != nil {
			return err
		}
		_, err := tx.Ledger().Reserve(ctx, "p-3", 1)
		return err
	})
	require.ErrorIs(t, err, domain.ErrOutOfStock)

	p, err := store.Catalog().GetProduct(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, 10, p.Stock)

	orders, err := store.Orders().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, orders)

	stats, err := store.Outbox().Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.PendingCount)

	cart, err := store.Carts().List(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, cart, 1)
}

func TestStore_OrderLifecycle(t *testing.T) {
	clock := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	store := openPostgresStoreForIntegrationTest(t, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	order, err := store.Orders().Create(ctx, integrationDraft("user-1"))
	require.NoError(t, err)
	assert.True(t, domain.ValidOrderID(order.ID))

	got, err := store.Orders().Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, got.ID)
	assert.Equal(t, "Springfield", got.ShippingAddress.City)
	assert.True(t, got.Totals.Total.Equal(domain.MustMoney("54.59")))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "Wireless Mouse", got.Items[0].Name)

	clock = clock.Add(time.Minute)
	change, err := store.Orders().AppendStatus(ctx, order.ID, domain.OrderStatusShipped, "", domain.PolicyStrict.Guard())
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusPending, change.Previous)
	assert.Equal(t, domain.OrderStatusShipped, change.Order.Status)
	assert.Equal(t, "Status changed from pending to shipped", change.Entry.Note)

	_, err = store.Orders().AppendStatus(ctx, order.ID, domain.OrderStatusConfirmed, "", domain.PolicyStrict.Guard())
	assert.ErrorIs(t, err, domain.ErrTransitionNotAllowed)

	history, err := store.Orders().History(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.InitialStatusNote, history[0].Note)
	assert.Equal(t, domain.OrderStatusShipped, history[1].Status)

	_, err = store.Orders().History(ctx, "ORD-NOPE-000000")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
	_, err = store.Orders().Get(ctx, "ORD-NOPE-000000")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestStore_OrderIDCollisionRetries(t *testing.T) {
	var calls int
	gen := func(time.Time) (string, error) {
		calls++
		if calls <= 2 {
			return "ORD-FIXED-AAAAAA", nil
		}
		return "ORD-FIXED-BBBBBB", nil
	}
	store := openPostgresStoreForIntegrationTest(t, WithOrderIDGenerator(gen))
	ctx := context.Background()

	_, err := store.Orders().Create(ctx, integrationDraft("user-1"))
	require.NoError(t, err)

	err = store.WithinTx(ctx, func(tx domain.Tx) error {
		order, err := tx.Orders().Create(ctx, integrationDraft("user-1"))
		if err != nil {
			return err
		}
		assert.Equal(t, "ORD-FIXED-BBBBBB", order.ID)
		return nil
	})
	require.NoError(t, err)

	orders, err := store.Orders().ListByUser(ctx, "user-1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
}

func TestStore_CartAndCatalog(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()

	require.NoError(t, store.Carts().Replace(ctx, "user-1", []domain.CartItem{{ProductID: "p-2", Quantity: 1}, {ProductID: "p-1", Quantity: 2}}))
	lines, err := store.Carts().List(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "p-2", lines[0].ProductID)
	assert.Equal(t, "home", lines[0].Product.CategorySlug)

	err = store.Carts().Replace(ctx, "user-1", []domain.CartItem{{ProductID: "missing", Quantity: 1}})
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	removed, err := store.Carts().Clear(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	page, err := store.Catalog().ListProducts(ctx, domain.ProductQuery{Category: "electronics"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Products, 2)
	assert.Equal(t, "p-3", page.Products[0].ID)

	page, err = store.Catalog().ListProducts(ctx, domain.ProductQuery{Search: "100%"})
	require.NoError(t, err)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "p-3", page.Products[0].ID)

	page, err = store.Catalog().ListProducts(ctx, domain.ProductQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	assert.True(t, page.HasMore)
}

func TestStore_Outbox(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := store.Outbox()

	first, err := repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "ORD-1", EventType: domain.EventOrderCreated, Payload: []byte(`{"a":1}`)})
	require.NoError(t, err)
	_, err = repo.Enqueue(ctx, domain.OutboxMessage{AggregateType: domain.AggregateOrder, AggregateID: "ORD-2", EventType: domain.EventOrderCreated, Payload: []byte(`{"a":2}`)})
	require.NoError(t, err)

	pending, err := repo.PullPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.JSONEq(t, `{"a":1}`, string(pending[0].Payload))

	require.NoError(t, repo.MarkSent(ctx, first.ID))
	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingCount)

	assert.ErrorIs(t, repo.MarkFailed(ctx, "missing"), domain.ErrOutboxPublish)
}

func TestStore_Idempotency(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ctx := context.Background()
	repo := NewIdempotencyRepository(store)

	ttl := time.Now().UTC().Add(time.Hour)
	_, err := repo.CreateProcessing(ctx, "key-1", "hash-a", ttl)
	require.NoError(t, err)

	_, err = repo.CreateProcessing(ctx, "key-1", "hash-a", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	_, err = repo.CreateProcessing(ctx, "key-1", "hash-b", ttl)
	assert.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone(ctx, "key-1", []byte(`{"success":true}`), 201))
	rec, err := repo.Get(ctx, "key-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyStatusDone, rec.Status)
	assert.Equal(t, 201, rec.HTTPStatus)

	require.NoError(t, repo.Delete(ctx, "key-1"))
	_, err = repo.Get(ctx, "key-1")
	assert.ErrorIs(t, err, domain.ErrIdempotencyKeyNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "key-1"), domain.ErrIdempotencyKeyNotFound)
	_, err = repo.CreateProcessing(ctx, "key-1", "hash-b", ttl)
	require.NoError(t, err, "released key must be reusable")

	_, err = repo.CreateProcessing(ctx, "key-old", "hash-a", time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	_, err = repo.CreateProcessing(ctx, "key-old", "hash-c", ttl)
	require.NoError(t, err, "expired key must be reclaimable")

	_, err = repo.CreateProcessing(ctx, "key-gone", "hash-a", time.Now().UTC().Add(-time.Minute))
	require.NoError(t, err)
	removed, err := repo.DeleteExpired(ctx, time.Now().UTC(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
}
