package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutRequest - данные формы оформления заказа.
type CheckoutRequest struct {
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Items           []LineItem      `json:"items"`
}

// ReceiptItem - позиция в публичной проекции заказа.
type ReceiptItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// OrderReceipt - публичная проекция заказа, которую видит покупатель.
type OrderReceipt struct {
	OrderID   string          `json:"orderId"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"createdAt"`
	Items     []ReceiptItem   `json:"items"`
}

// Receipt строит публичную проекцию заказа.
func (o *Order) Receipt() OrderReceipt {
	items := make([]ReceiptItem, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ReceiptItem{Name: item.Name, Quantity: item.Quantity, Price: item.UnitPrice})
	}
	return OrderReceipt{
		OrderID:   o.ID,
		Status:    o.Status,
		Total:     o.Totals.Total,
		CreatedAt: o.CreatedAt,
		Items:     items,
	}
}
