package domain

import (
	"fmt"
	"strings"
)

// CartItem - позиция корзины пользователя.
type CartItem struct {
	ProductID string
	Quantity  int
}

// CartLine - позиция корзины вместе с актуальной карточкой товара.
type CartLine struct {
	CartItem
	Product Product
}

// LineItem - позиция, которую клиент прислал на оформление.
type LineItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// ValidateLineItems проверяет позиции корзины или заказа.
func ValidateLineItems(items []LineItem) error {
	for i, item := range items {
		if strings.TrimSpace(item.ProductID) == "" {
			return ValidationError(fmt.Sprintf("items[%d].productId", i), "is required")
		}
		if item.Quantity <= 0 {
			return ValidationError(fmt.Sprintf("items[%d].quantity", i), "must be greater than zero")
		}
	}
	return nil
}
