package catalog_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/catalog"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/memory"
)

func newService(t *testing.T) *catalog.Service {
	t.Helper()

	store := memory.NewStore()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 120; i++ {
		category := "electronics"
		if i%2 == 1 {
			category = "home"
		}
		store.AddProduct(domain.Product{
			ID:           fmt.Sprintf("p-%03d", i),
			Name:         fmt.Sprintf("Product %d", i),
			CategorySlug: category,
			Price:        domain.MustMoney("1.00"),
			Stock:        1,
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
	}
	return catalog.NewService(store.Catalog(), nil)
}

func TestList_Pagination(t *testing.T) {
	svc := newService(t)

	tests := []struct {
		name      string
		query     domain.ProductQuery
		wantLen   int
		wantLimit int
		wantTotal int
		hasMore   bool
		firstID   string
	}{
		{name: "default limit", query: domain.ProductQuery{}, wantLen: 50, wantLimit: 50, wantTotal: 120, hasMore: true, firstID: "p-119"},
		{name: "limit capped", query: domain.ProductQuery{Limit: 500}, wantLen: 100, wantLimit: 100, wantTotal: 120, hasMore: true, firstID: "p-119"},
		{name: "last page", query: domain.ProductQuery{Limit: 50, Offset: 100}, wantLen: 20, wantLimit: 50, wantTotal: 120, firstID: "p-019"},
		{name: "category filter", query: domain.ProductQuery{Category: "home", Limit: 10}, wantLen: 10, wantLimit: 10, wantTotal: 60, hasMore: true, firstID: "p-119"},
		{name: "search", query: domain.ProductQuery{Search: "product 11"}, wantLen: 11, wantLimit: 50, wantTotal: 11, firstID: "p-119"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := svc.List(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Len(t, page.Products, tt.wantLen)
			assert.Equal(t, tt.wantLimit, page.Limit)
			assert.Equal(t, tt.wantTotal, page.Total)
			assert.Equal(t, tt.hasMore, page.HasMore)
			require.NotEmpty(t, page.Products)
			assert.Equal(t, tt.firstID, page.Products[0].ID)
		})
	}
}

func TestGet(t *testing.T) {
	svc := newService(t)

	product, err := svc.Get(context.Background(), " p-001 ")
	require.NoError(t, err)
	assert.Equal(t, "Product 1", product.Name)

	_, err = svc.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, domain.ErrProductNotFound)

	_, err = svc.Get(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}
