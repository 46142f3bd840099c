package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

type inventoryLedger struct {
	scope *scope
}

// Reserve списывает остаток одним условным UPDATE: проверка и запись атомарны на уровне строки.
func (l *inventoryLedger) Reserve(ctx context.Context, productID string, quantity int) (domain.Reservation, error) {
	if err := domain.ValidateReservation(productID, quantity); err != nil {
		return domain.Reservation{}, err
	}

	res := domain.Reservation{ProductID: productID, Quantity: quantity}
	err := l.scope.q.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock - $2,
		    updated_at = NOW()
		WHERE id = $1 AND stock >= $2
		RETURNING name, image_url, price, stock
	`, productID, quantity).Scan(&res.Name, &res.ImageURL, &res.UnitPrice, &res.Remaining)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, fmt.Errorf("reserve stock for %s: %w", productID, err)
	}

	// Строка не обновилась: товара нет или остатка не хватает.
	var (
		name      string
		available int
	)
	err = l.scope.q.QueryRowContext(ctx, `SELECT name, stock FROM products WHERE id = $1`, productID).Scan(&name, &available)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.Reservation{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	case err != nil:
		return domain.Reservation{}, fmt.Errorf("read stock for %s: %w", productID, err)
	}
	return domain.Reservation{}, &domain.OutOfStockError{
		ProductID:   productID,
		ProductName: name,
		Requested:   quantity,
		Available:   available,
	}
}

var _ domain.InventoryLedger = (*inventoryLedger)(nil)
