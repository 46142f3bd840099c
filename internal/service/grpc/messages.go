package grpcsvc

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// CheckoutRequest - форма оформления заказа.
type CheckoutRequest struct {
	ShippingAddress domain.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	Items           []domain.LineItem      `json:"items"`
}

// CheckoutResponse - публичная проекция созданного заказа.
type CheckoutResponse struct {
	Order domain.OrderReceipt `json:"order"`
}

type GetOrderRequest struct {
	OrderID string `json:"orderId"`
}

type GetOrderResponse struct {
	Order Order `json:"order"`
}

type ListOrdersRequest struct{}

type ListOrdersResponse struct {
	Orders []Order `json:"orders"`
}

type GetOrderStatusRequest struct {
	OrderID string `json:"orderId"`
}

type GetOrderStatusResponse struct {
	OrderID       string             `json:"orderId"`
	CurrentStatus domain.OrderStatus `json:"currentStatus"`
	Total         decimal.Decimal    `json:"total"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	StatusHistory []StatusEntry      `json:"statusHistory"`
}

type UpdateOrderStatusRequest struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
	Note    string `json:"note"`
}

type UpdateOrderStatusResponse struct {
	OrderID        string             `json:"orderId"`
	PreviousStatus domain.OrderStatus `json:"previousStatus"`
	NewStatus      domain.OrderStatus `json:"newStatus"`
}

// Order - полная проекция заказа для владельца и администратора.
type Order struct {
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
	Items           []OrderItem            `json:"items"`
}

type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	ImageURL  string          `json:"imageUrl"`
}

type StatusEntry struct {
	Status    domain.OrderStatus `json:"status"`
	Note      string             `json:"note"`
	CreatedAt time.Time          `json:"createdAt"`
}

func toOrder(o domain.Order) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Price:     item.UnitPrice,
			ImageURL:  item.ImageURL,
		})
	}
	return Order{
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
