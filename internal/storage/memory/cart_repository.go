package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

type cartRecord struct {
	item      domain.CartItem
	createdAt time.Time
}

type cartRepository struct {
	scope *scope
}

// Replace удаляет прежние позиции и сохраняет новые; неизвестный товар отменяет замену целиком.
func (r *cartRepository) Replace(ctx context.Context, userID string, items []domain.CartItem) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s := r.scope.store
	unlock := r.scope.lock()
	defer unlock()

	now := s.now()
	next := make([]cartRecord, 0, len(items))
	for _, item := range items {
		if _, ok := s.products[item.ProductID]; !ok {
			return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
		}
		next = append(next, cartRecord{item: item, createdAt: now})
	}

	previous, had := s.carts[userID]
	if len(next) == 0 {
		delete(s.carts, userID)
	} else {
		s.carts[userID] = next
	}
	r.scope.onRollback(func() { restoreCart(s, userID, previous, had) })
	return nil
}

// List возвращает позиции вместе с карточками товаров в порядке добавления.
func (r *cartRepository) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := r.scope.store
	unlock := r.scope.lock()
	defer unlock()

	records := s.carts[userID]
	lines := make([]domain.CartLine, 0, len(records))
	for _, rec := range records {
		product, ok := s.products[rec.item.ProductID]
		if !ok {
			continue
		}
		lines = append(lines, domain.CartLine{CartItem: rec.item, Product: *product})
	}
	return lines, nil
}

// Clear удаляет корзину пользователя.
func (r *cartRepository) Clear(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s := r.scope.store
	unlock := r.scope.lock()
	defer unlock()

	previous, had := s.carts[userID]
	if !had {
		return 0, nil
	}
	delete(s.carts, userID)
	r.scope.onRollback(func() { restoreCart(s, userID, previous, had) })
	return len(previous), nil
}

func restoreCart(s *Store, userID string, records []cartRecord, had bool) {
	if had {
		s.carts[userID] = records
		return
	}
	delete(s.carts, userID)
}

var _ domain.CartRepository = (*cartRepository)(nil)
