package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

type inventoryLedger struct {
	scope *scope
}

// Reserve проверяет остаток и списывает его под мьютексом хранилища.
func (l *inventoryLedger) Reserve(ctx context.Context, productID string, quantity int) (domain.Reservation, error) {
	if err := domain.ValidateReservation(productID, quantity); err != nil {
		return domain.Reservation{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Reservation{}, err
	}

	unlock := l.scope.lock()
	defer unlock()

	product, ok := l.scope.store.products[productID]
	if !ok {
		return domain.Reservation{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if product.Stock < quantity {
		return domain.Reservation{}, &domain.OutOfStockError{
			ProductID:   product.ID,
			ProductName: product.Name,
			Requested:   quantity,
			Available:   product.Stock,
		}
	}

	product.Stock -= quantity
	l.scope.onRollback(func() { product.Stock += quantity })

	return domain.Reservation{
		ProductID: product.ID,
		Name:      product.Name,
		ImageURL:  product.ImageURL,
		Quantity:  quantity,
		UnitPrice: product.Price,
		Remaining: product.Stock,
	}, nil
}

type catalog struct {
	scope *scope
}

// AddProduct добавляет или заменяет товар (используется сидером и тестами).
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	stored := p
	s.products[p.ID] = &stored
}

// Stock возвращает текущий остаток товара.
func (s *Store) Stock(productID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return 0, false
	}
	return p.Stock, true
}

func (c *catalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	if err := ctx.Err(); err != nil {
		return domain.Product{}, err
	}
	productID = strings.TrimSpace(productID)

	unlock := c.scope.lock()
	defer unlock()

	p, ok := c.scope.store.products[productID]
	if !ok {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	return *p, nil
}

func (c *catalog) ListProducts(ctx context.Context, query domain.ProductQuery) (domain.ProductPage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ProductPage{}, err
	}
	query = query.Normalize()

	unlock := c.scope.lock()
	matched := make([]domain.Product, 0, len(c.scope.store.products))
	for _, p := range c.scope.store.products {
		if query.Matches(*p) {
			matched = append(matched, *p)
		}
	}
	unlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	start := query.Offset
	if start > total {
		start = total
	}
	end := start + query.Limit
	if end > total {
		end = total
	}

	return domain.NewProductPage(matched[start:end], total, query), nil
}

var (
	_ domain.InventoryLedger = (*inventoryLedger)(nil)
	_ domain.Catalog         = (*catalog)(nil)
)
