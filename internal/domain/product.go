package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultProductPageLimit - размер страницы каталога по умолчанию.
	DefaultProductPageLimit = 50
	// MaxProductPageLimit ограничивает размер страницы каталога.
	MaxProductPageLimit = 100
)

// Product - карточка товара из каталога.
type Product struct {
	ID           string
	Name         string
	Description  string
	CategorySlug string
	CategoryName string
	Price        decimal.Decimal
	Stock        int
	ImageURL     string
	CreatedAt    time.Time
}

// ProductQuery описывает фильтры и пагинацию каталога.
type ProductQuery struct {
	Category string
	Search   string
	Limit    int
	Offset   int
}

// Normalize приводит пагинацию к допустимым границам.
func (q ProductQuery) Normalize() ProductQuery {
	q.Category = strings.TrimSpace(q.Category)
	q.Search = strings.TrimSpace(q.Search)
	if q.Limit <= 0 {
		q.Limit = DefaultProductPageLimit
	}
	if q.Limit > MaxProductPageLimit {
		q.Limit = MaxProductPageLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q
}

// Matches применяет фильтры запроса к товару (используется in-memory каталогом).
func (q ProductQuery) Matches(p Product) bool {
	if q.Category != "" && !strings.EqualFold(p.CategorySlug, q.Category) {
		return false
	}
	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(p.Name), needle) && !strings.Contains(strings.ToLower(p.Description), needle) {
			return false
		}
	}
	return true
}

// ProductPage - страница каталога.
type ProductPage struct {
	Products []Product
	Total    int
	Limit    int
	Offset   int
	HasMore  bool
}

// NewProductPage считает признак следующей страницы.
func NewProductPage(products []Product, total int, q ProductQuery) ProductPage {
	return ProductPage{
		Products: products,
		Total:    total,
		Limit:    q.Limit,
		Offset:   q.Offset,
		HasMore:  q.Offset+len(products) < total,
	}
}
