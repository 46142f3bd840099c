package domain

import (
	"fmt"
	"strings"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending - заказ оформлен, ждёт подтверждения.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed - заказ подтверждён магазином.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing - заказ собирается на складе.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped - заказ передан перевозчику.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusOutForDelivery - курьер везёт заказ получателю.
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	// OrderStatusDelivered - заказ вручён, терминальный статус.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled - заказ отменён, терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderStatusSequence - прямой порядок доставки; cancelled в него не входит.
var orderStatusSequence = []OrderStatus{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
}

// AllOrderStatuses возвращает все допустимые статусы в порядке жизненного цикла.
func AllOrderStatuses() []OrderStatus {
	out := make([]OrderStatus, 0, len(orderStatusSequence)+1)
	out = append(out, orderStatusSequence...)
	return append(out, OrderStatusCancelled)
}

// ParseOrderStatus приводит строку к OrderStatus или возвращает ErrInvalidStatus.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.TrimSpace(raw))
	if !status.Valid() {
		names := make([]string, 0, len(orderStatusSequence)+1)
		for _, s := range AllOrderStatuses() {
			names = append(names, string(s))
		}
		return "", fmt.Errorf("%w %q: must be one of: %s", ErrInvalidStatus, raw, strings.Join(names, ", "))
	}
	return status, nil
}

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	return s == OrderStatusCancelled || s.rank() >= 0
}

// Terminal - из delivered и cancelled заказ никуда не переходит.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// NotifiesCustomer возвращает true для статусов, о которых покупателю уходит письмо.
func (s OrderStatus) NotifiesCustomer() bool {
	switch s {
	case OrderStatusShipped, OrderStatusOutForDelivery, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

func (s OrderStatus) rank() int {
	for i, candidate := range orderStatusSequence {
		if candidate == s {
			return i
		}
	}
	return -1
}

// DefaultStatusNote формирует комментарий, если администратор его не указал.
func DefaultStatusNote(from, to OrderStatus) string {
	return fmt.Sprintf("Status changed from %s to %s", from, to)
}

// TransitionPolicy определяет, какие переходы статусов разрешены.
type TransitionPolicy string

const (
	// PolicyPermissive разрешает любой допустимый статус из любого другого.
	PolicyPermissive TransitionPolicy = "permissive"
	// PolicyStrict разрешает только движение вперёд и отмену из нетерминальных статусов.
	PolicyStrict TransitionPolicy = "strict"
)

// ParseTransitionPolicy разбирает значение из конфигурации.
func ParseTransitionPolicy(raw string) (TransitionPolicy, error) {
	switch TransitionPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case PolicyPermissive:
		return PolicyPermissive, nil
	case PolicyStrict:
		return PolicyStrict, nil
	default:
		return "", fmt.Errorf("unsupported status policy %q (use permissive|strict)", raw)
	}
}

// TransitionGuard проверяет переход, зная текущий статус заказа.
type TransitionGuard func(from, to OrderStatus) error

// Guard возвращает проверку переходов для политики.
func (p TransitionPolicy) Guard() TransitionGuard {
	if p == PolicyStrict {
		return strictTransition
	}
	return permissiveTransition
}

func permissiveTransition(_, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidStatus, to)
	}
	return nil
}

func strictTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return fmt.Errorf("%w %q", ErrInvalidStatus, to)
	}
	switch {
	case from.Terminal():
		return fmt.Errorf("%w: %s is terminal", ErrTransitionNotAllowed, from)
	case to == OrderStatusCancelled:
		return nil
	case to.rank() <= from.rank():
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	default:
		return nil
	}
}
