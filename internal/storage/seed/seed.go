// Package seed наполняет каталог демонстрационными товарами.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/storage/memory"
)

// Category - раздел каталога.
type Category struct {
	Slug string
	Name string
}

// Writer - хранилище, умеющее принимать карточки каталога.
type Writer interface {
	UpsertCategory(ctx context.Context, slug, name string) error
	UpsertProduct(ctx context.Context, p domain.Product) error
}

var categories = []Category{
	{Slug: "electronics", Name: "Electronics"},
	{Slug: "home", Name: "Home & Kitchen"},
	{Slug: "accessories", Name: "Accessories"},
	{Slug: "stationery", Name: "Stationery"},
}

type productSeed struct {
	id, name, description, category, price string
	stock                                  int
}

var products = []productSeed{
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e01", "Wireless Mouse", "Ergonomic 2.4 GHz mouse with silent clicks", "electronics", "25.00", 120},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e02", "Mechanical Keyboard", "Hot-swappable switches, RGB backlight", "electronics", "89.99", 40},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e03", "USB-C Hub", "7-in-1 hub with HDMI and card reader", "electronics", "39.50", 75},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e04", "Noise Cancelling Headphones", "Over-ear, 30 hours of battery life", "electronics", "199.00", 15},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e05", "Desk Lamp", "LED lamp with adjustable color temperature", "home", "20.00", 60},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e06", "Pour-Over Coffee Set", "Glass dripper, kettle and filters", "home", "45.00", 25},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e07", "Flash Sale Smart Speaker", "Limited stock item for flash sales", "electronics", "49.00", 5},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e08", "Leather Laptop Sleeve", "Fits 13 to 14 inch laptops", "accessories", "34.90", 50},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e09", "Canvas Backpack", "Water-resistant daily backpack", "accessories", "59.00", 30},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e10", "Dotted Notebook", "A5, 160 pages, lay-flat binding", "stationery", "12.50", 200},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e11", "Fountain Pen", "Steel nib, converter included", "stationery", "28.00", 45},
	{"7f2c1d7e-0c4b-4a57-9f3e-1a2b3c4d5e12", "Ceramic Mug", "350 ml, dishwasher safe", "home", "9.99", 150},
}

// Categories возвращает разделы демонстрационного каталога.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Products возвращает демонстрационные товары с фиксированными идентификаторами.
func Products(createdAt time.Time) []domain.Product {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.Slug] = c.Name
	}
	out := make([]domain.Product, 0, len(products))
	for i, p := range products {
		out = append(out, domain.Product{
			ID:           p.id,
			Name:         p.name,
			Description:  p.description,
			CategorySlug: p.category,
			CategoryName: names[p.category],
			Price:        domain.MustMoney(p.price),
			Stock:        p.stock,
			ImageURL:     fmt.Sprintf("https://images.flashcart.dev/products/%02d.jpg", i+1),
			CreatedAt:    createdAt.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

// Apply записывает разделы и товары. Повторный вызов обновляет карточки и возвращает остатки к исходным.
func Apply(ctx context.Context, w Writer, createdAt time.Time) (int, error) {
	for _, c := range categories {
		if err := w.UpsertCategory(ctx, c.Slug, c.Name); err != nil {
			return 0, fmt.Errorf("seed category %s: %w", c.Slug, err)
		}
	}
	list := Products(createdAt)
	for _, p := range list {
		if err := w.UpsertProduct(ctx, p); err != nil {
			return 0, fmt.Errorf("seed product %s: %w", p.Name, err)
		}
	}
	return len(list), nil
}

// MemoryWriter адаптирует in-memory хранилище к Writer.
type MemoryWriter struct {
	Store *memory.Store
}

func (w MemoryWriter) UpsertCategory(context.Context, string, string) error {
	return nil
}

func (w MemoryWriter) UpsertProduct(ctx context.Context, p domain.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w.Store.AddProduct(p)
	return nil
}
