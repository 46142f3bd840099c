package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// maxOrderIDAttempts ограничивает повторную генерацию идентификатора при коллизии.
const maxOrderIDAttempts = 3

type orderRecord struct {
	order   domain.Order
	history []domain.StatusLogEntry
}

type orderStore struct {
	scope *scope
}

// Create сохраняет заказ вместе с первой записью истории.
func (r *orderStore) Create(ctx context.Context, draft domain.OrderDraft) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	s := r.scope.store
	unlock := r.scope.lock()
	defer unlock()

	now := s.now()
	var id string
	for attempt := 0; attempt < maxOrderIDAttempts; attempt++ {
		candidate, err := s.newOrderID(now)
		if err != nil {
			return domain.Order{}, fmt.Errorf("generate order id: %w", err)
		}
		if _, exists := s.orders[candidate]; !exists {
			id = candidate
			break
		}
	}
	if id == "" {
		return domain.Order{}, domain.ErrOrderIDConflict
	}

	order := domain.NewOrder(id, draft, now)
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, fmt.Errorf("order invariants: %w", errs[0])
	}

	s.orders[id] = &orderRecord{
		order: cloneOrder(order),
		history: []domain.StatusLogEntry{{
			OrderID:   id,
			Status:    domain.OrderStatusPending,
			Note:      domain.InitialStatusNote,
			CreatedAt: now,
		}},
	}
	r.scope.onRollback(func() { delete(s.orders, id) })

	return cloneOrder(order), nil
}

// AppendStatus меняет статус и дописывает историю атомарно.
func (r *orderStore) AppendStatus(ctx context.Context, orderID string, status domain.OrderStatus, note string, guard domain.TransitionGuard) (domain.StatusChange, error) {
	if err := ctx.Err(); err != nil {
		return domain.StatusChange{}, err
	}

	s := r.scope.store
	unlock := r.scope.lock()
	defer unlock()

	rec, ok := s.orders[orderID]
	if !ok {
		return domain.StatusChange{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}

	previous := rec.order.Status
	if guard != nil {
		if err := guard(previous, status); err != nil {
			return domain.StatusChange{}, err
		}
	}
	if strings.TrimSpace(note) == "" {
		note = domain.DefaultStatusNote(previous, status)
	}

	now := s.now()
	// История монотонна даже при откате системных часов.
	if last := rec.history[len(rec.history)-1].CreatedAt; now.Before(last) {
		now = last
	}

	prevUpdatedAt := rec.order.UpdatedAt
	rec.order.Status = status
	rec.order.UpdatedAt = now
	entry := domain.StatusLogEntry{OrderID: orderID, Status: status, Note: note, CreatedAt: now}
	rec.history = append(rec.history, entry)

	r.scope.onRollback(func() {
		rec.order.Status = previous
		rec.order.UpdatedAt = prevUpdatedAt
		rec.history = rec.history[:len(rec.history)-1]
	})

	return domain.StatusChange{Order: cloneOrder(rec.order), Previous: previous, Entry: entry}, nil
}

// Get возвращает копию заказа.
func (r *orderStore) Get(ctx context.Context, orderID string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	unlock := r.scope.lock()
	defer unlock()

	rec, ok := r.scope.store.orders[orderID]
	if !ok {
		return domain.Order{}, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	return cloneOrder(rec.order), nil
}

// ListByUser возвращает заказы пользователя, новые первыми.
func (r *orderStore) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.scope.lock()
	out := make([]domain.Order, 0)
	for _, rec := range r.scope.store.orders {
		if rec.order.UserID == userID {
			out = append(out, cloneOrder(rec.order))
		}
	}
	unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// History возвращает журнал статусов в порядке добавления.
func (r *orderStore) History(ctx context.Context, orderID string) ([]domain.StatusLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	unlock := r.scope.lock()
	defer unlock()

	rec, ok := r.scope.store.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrOrderNotFound, orderID)
	}
	out := make([]domain.StatusLogEntry, len(rec.history))
	copy(out, rec.history)
	return out, nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = make([]domain.OrderItem, len(src.Items))
	copy(dst.Items, src.Items)
	return dst
}

var _ domain.OrderStore = (*orderStore)(nil)
