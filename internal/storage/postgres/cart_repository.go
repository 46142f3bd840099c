package postgres

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

type cartRepository struct {
	scope *scope
}

// Replace удаляет корзину и вставляет новые позиции в одной транзакции.
func (r *cartRepository) Replace(ctx context.Context, userID string, items []domain.CartItem) error {
	return r.scope.atomic(ctx, func(q dbtx) error {
		if _, err := q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("clear cart: %w", err)
		}

		now := r.scope.store.now()
		for i, item := range items {
			_, err := q.ExecContext(ctx, `
				INSERT INTO cart_items (user_id, product_id, quantity, position, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $5)
			`, userID, item.ProductID, item.Quantity, i, now)
			switch {
			case err == nil:
			case isForeignKeyViolation(err):
				return fmt.Errorf("%w: %s", domain.ErrProductNotFound, item.ProductID)
			case isUniqueViolation(err):
				return domain.ValidationError("items", "contain duplicate product "+item.ProductID)
			default:
				return fmt.Errorf("insert cart item: %w", err)
			}
		}
		return nil
	})
}

func (r *cartRepository) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	rows, err := r.scope.q.QueryContext(ctx, `
		SELECT ci.quantity, `+productColumns+`
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ci.user_id = $1
		ORDER BY ci.position
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart: %w", err)
	}
	defer rows.Close()

	lines := make([]domain.CartLine, 0)
	for rows.Next() {
		var line domain.CartLine
		p := &line.Product
		if err := rows.Scan(&line.Quantity, &p.ID, &p.Name, &p.Description, &p.CategorySlug, &p.CategoryName,
			&p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		line.ProductID = p.ID
		p.CreatedAt = p.CreatedAt.UTC()
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart: %w", err)
	}
	return lines, nil
}

func (r *cartRepository) Clear(ctx context.Context, userID string) (int, error) {
	res, err := r.scope.q.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cart rows affected: %w", err)
	}
	return int(affected), nil
}

var _ domain.CartRepository = (*cartRepository)(nil)
