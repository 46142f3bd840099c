package httpapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/cart"
	"github.com/vladislavdragonenkov/flashcart/internal/service/orders"
)

type orderItemView struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
}

type orderView struct {
	OrderID         string                 `json:"orderId"`
	Status          domain.OrderStatus     `json:"status"`
	Subtotal        decimal.Decimal        `json:"subtotal"`
	Shipping        decimal.Decimal        `json:"shipping"`
	Tax             decimal.Decimal        `json:"tax"`
	Total           decimal.Decimal        `json:"total"`
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
	Items           []orderItemView        `json:"items"`
}

func newOrderView(o domain.Order) orderView {
	items := make([]orderItemView, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, orderItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
			ImageURL:  item.ImageURL,
		})
	}
	return orderView{
		OrderID:         o.ID,
		Status:          o.Status,
		Subtotal:        o.Totals.Subtotal,
		Shipping:        o.Totals.Shipping,
		Tax:             o.Totals.Tax,
		Total:           o.Totals.Total,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		Items:           items,
	}
}

type statusEntryView struct {
	Status    domain.OrderStatus `json:"status"`
	Note      string             `json:"note"`
	CreatedAt time.Time          `json:"createdAt"`
}

type statusView struct {
	OrderID       string             `json:"orderId"`
	CurrentStatus domain.OrderStatus `json:"currentStatus"`
	Total         decimal.Decimal    `json:"total"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	StatusHistory []statusEntryView  `json:"statusHistory"`
}

func newStatusView(v orders.StatusView) statusView {
	history := make([]statusEntryView, 0, len(v.History))
	for _, e := range v.History {
		history = append(history, statusEntryView{Status: e.Status, Note: e.Note, CreatedAt: e.CreatedAt})
	}
	return statusView{
		OrderID:       v.OrderID,
		CurrentStatus: v.Status,
		Total:         v.Total,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
		StatusHistory: history,
	}
}

type categoryView struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

type productView struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	ImageURL    string          `json:"imageUrl"`
	Category    *categoryView   `json:"category,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func newProductView(p domain.Product) productView {
	view := productView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt,
	}
	if p.CategorySlug != "" {
		view.Category = &categoryView{Slug: p.CategorySlug, Name: p.CategoryName}
	}
	return view
}

type paginationView struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

type cartLineView struct {
	ProductID string      `json:"productId"`
	Quantity  int         `json:"quantity"`
	Product   productView `json:"product"`
}

func newCartView(lines []domain.CartLine) []cartLineView {
	out := make([]cartLineView, 0, len(lines))
	for _, line := range lines {
		out = append(out, cartLineView{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			Product:   newProductView(line.Product),
		})
	}
	return out
}

type totalsView struct {
	Subtotal decimal.Decimal `json:"subtotal"`
	Shipping decimal.Decimal `json:"shipping"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type quoteView struct {
	Cart   []cartLineView `json:"cart"`
	Totals totalsView     `json:"totals"`
}

func newQuoteView(q cart.Quote) quoteView {
	return quoteView{
		Cart: newCartView(q.Lines),
		Totals: totalsView{
			Subtotal: q.Totals.Subtotal,
			Shipping: q.Totals.Shipping,
			Tax:      q.Totals.Tax,
			Total:    q.Totals.Total,
		},
	}
}
