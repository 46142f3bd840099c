package domain

import "github.com/shopspring/decimal"

// NotificationType различает шаблоны писем.
type NotificationType string

const (
	// NotificationConfirmation - письмо о принятом заказе.
	NotificationConfirmation NotificationType = "confirmation"
	// NotificationStatusUpdate - письмо о смене статуса.
	NotificationStatusUpdate NotificationType = "status_update"
)

// NotificationItem - строка таблицы позиций в письме.
type NotificationItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Notification - запрос на отправку письма покупателю.
type Notification struct {
	Type            NotificationType   `json:"type"`
	OrderID         string             `json:"orderId"`
	Email           string             `json:"email"`
	Name            string             `json:"name"`
	Items           []NotificationItem `json:"items,omitempty"`
	Total           *decimal.Decimal   `json:"total,omitempty"`
	ShippingAddress *ShippingAddress   `json:"shippingAddress,omitempty"`
	Status          OrderStatus        `json:"status,omitempty"`
	PreviousStatus  OrderStatus        `json:"previousStatus,omitempty"`
}

// ConfirmationNotification собирает письмо-подтверждение по созданному заказу.
func ConfirmationNotification(order Order) Notification {
	items := make([]NotificationItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, NotificationItem{Name: item.Name, Quantity: item.Quantity, Price: item.UnitPrice})
	}
	total := order.Totals.Total
	address := order.ShippingAddress
	name := order.CustomerName
	if name == "" {
		name = address.FullName
	}
	return Notification{
		Type:            NotificationConfirmation,
		OrderID:         order.ID,
		Email:           order.CustomerEmail,
		Name:            name,
		Items:           items,
		Total:           &total,
		ShippingAddress: &address,
		Status:          order.Status,
	}
}

// StatusUpdateNotification собирает письмо о смене статуса.
func StatusUpdateNotification(change StatusChange) Notification {
	name := change.Order.CustomerName
	if name == "" {
		name = change.Order.ShippingAddress.FullName
	}
	return Notification{
		Type:           NotificationStatusUpdate,
		OrderID:        change.Order.ID,
		Email:          change.Order.CustomerEmail,
		Name:           name,
		Status:         change.Entry.Status,
		PreviousStatus: change.Previous,
	}
}
