package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// OrderCreatedEvent - полезная нагрузка события order.created.
type OrderCreatedEvent struct {
	OrderID   string          `json:"orderId"`
	UserID    string          `json:"userId"`
	Status    OrderStatus     `json:"status"`
	Total     decimal.Decimal `json:"total"`
	ItemCount int             `json:"itemCount"`
	CreatedAt time.Time       `json:"createdAt"`
}

// OrderStatusChangedEvent - полезная нагрузка события order.status_changed.
type OrderStatusChangedEvent struct {
	OrderID        string      `json:"orderId"`
	UserID         string      `json:"userId"`
	PreviousStatus OrderStatus `json:"previousStatus"`
	Status         OrderStatus `json:"status"`
	Note           string      `json:"note"`
	ChangedAt      time.Time   `json:"changedAt"`
}

// NewOrderCreatedMessage готовит outbox-сообщение о созданном заказе.
func NewOrderCreatedMessage(order Order) (OutboxMessage, error) {
	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	return newOrderMessage(order.ID, EventOrderCreated, OrderCreatedEvent{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Status:    order.Status,
		Total:     order.Totals.Total,
		ItemCount: units,
		CreatedAt: order.CreatedAt,
	})
}

// NewStatusChangedMessage готовит outbox-сообщение о смене статуса.
func NewStatusChangedMessage(change StatusChange) (OutboxMessage, error) {
	return newOrderMessage(change.Order.ID, EventOrderStatusChanged, OrderStatusChangedEvent{
		OrderID:        change.Order.ID,
		UserID:         change.Order.UserID,
		PreviousStatus: change.Previous,
		Status:         change.Entry.Status,
		Note:           change.Entry.Note,
		ChangedAt:      change.Entry.CreatedAt,
	})
}

func newOrderMessage(orderID, eventType string, payload any) (OutboxMessage, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return OutboxMessage{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return OutboxMessage{
		AggregateType: AggregateOrder,
		AggregateID:   orderID,
		EventType:     eventType,
		Payload:       data,
	}, nil
}
