package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

const productColumns = `
	p.id, p.name, p.description, COALESCE(c.slug, ''), COALESCE(c.name, ''),
	p.price, p.stock, p.image_url, p.created_at`

// productFilter повторяется в выборке и в подсчёте, чтобы total совпадал с фильтрами.
const productFilter = `
	WHERE ($1 = '' OR c.slug = $1)
	  AND ($2 = '' OR p.name ILIKE $2 OR p.description ILIKE $2)`

type catalog struct {
	scope *scope
}

func (c *catalog) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)

	row := c.scope.q.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1
	`, productID)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("%w: %s", domain.ErrProductNotFound, productID)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("get product %s: %w", productID, err)
	}
	return p, nil
}

func (c *catalog) ListProducts(ctx context.Context, query domain.ProductQuery) (domain.ProductPage, error) {
	query = query.Normalize()
	pattern := ""
	if query.Search != "" {
		pattern = "%" + escapeLike(query.Search) + "%"
	}

	var total int
	if err := c.scope.q.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
	`+productFilter, query.Category, pattern).Scan(&total); err != nil {
		return domain.ProductPage{}, fmt.Errorf("count products: %w", err)
	}

	rows, err := c.scope.q.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
	`+productFilter+`
		ORDER BY p.created_at DESC, p.id
		LIMIT $3 OFFSET $4
	`, query.Category, pattern, query.Limit, query.Offset)
	if err != nil {
		return domain.ProductPage{}, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0, query.Limit)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return domain.ProductPage{}, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return domain.ProductPage{}, fmt.Errorf("iterate products: %w", err)
	}

	return domain.NewProductPage(products, total, query), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategorySlug, &p.CategoryName,
		&p.Price, &p.Stock, &p.ImageURL, &p.CreatedAt)
	if err != nil {
		return domain.Product{}, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// UpsertCategory создаёт категорию или обновляет её название.
func (s *Store) UpsertCategory(ctx context.Context, slug, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO categories (slug, name) VALUES ($1, $2)
		ON CONFLICT (slug) DO UPDATE SET name = EXCLUDED.name
	`, slug, name)
	if err != nil {
		return fmt.Errorf("upsert category %s: %w", slug, err)
	}
	return nil
}

// UpsertProduct создаёт товар или обновляет карточку и остаток.
func (s *Store) UpsertProduct(ctx context.Context, p domain.Product) error {
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, category_id, price, stock, image_url, created_at, updated_at)
		VALUES ($1, $2, $3, (SELECT id FROM categories WHERE slug = $4), $5, $6, $7, $8, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category_id = EXCLUDED.category_id,
			price = EXCLUDED.price,
			stock = EXCLUDED.stock,
			image_url = EXCLUDED.image_url,
			updated_at = NOW()
	`, p.ID, p.Name, p.Description, p.CategorySlug, p.Price, p.Stock, p.ImageURL, createdAt)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}
	return nil
}

var _ domain.Catalog = (*catalog)(nil)
