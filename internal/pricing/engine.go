// Package pricing считает итоги заказа: subtotal, доставку, налог и total.
//
// Engine - единственный источник правды по цене. Превью корзины и оформление заказа
// используют одну и ту же политику, поэтому итог в корзине совпадает с итогом в заказе.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// Policy задаёт параметры расчёта.
type Policy struct {
	// FreeShippingOver - доставка бесплатна, если subtotal строго больше порога.
	FreeShippingOver decimal.Decimal
	// FlatShipping - фиксированная стоимость доставки ниже порога.
	FlatShipping decimal.Decimal
	// TaxRate - ставка налога, применяется к subtotal.
	TaxRate decimal.Decimal
}

// DefaultPolicy - политика оформления заказа: 5.99 до 50.00 включительно, налог 8%.
func DefaultPolicy() Policy {
	return Policy{
		FreeShippingOver: decimal.RequireFromString("50.00"),
		FlatShipping:     decimal.RequireFromString("5.99"),
		TaxRate:          decimal.RequireFromString("0.08"),
	}
}

// Line - цена за единицу и количество.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Engine - чистый расчёт без побочных эффектов.
type Engine struct {
	policy Policy
}

// NewEngine создаёт движок с заданной политикой.
func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

// Policy возвращает действующую политику.
func (e *Engine) Policy() Policy {
	return e.policy
}

// Price считает итоги. Пустой список - ErrEmptyOrder.
func (e *Engine) Price(lines []Line) (domain.Totals, error) {
	if len(lines) == 0 {
		return domain.Totals{}, domain.ErrEmptyOrder
	}

	subtotal := decimal.Zero
	for i, line := range lines {
		if line.Quantity <= 0 {
			return domain.Totals{}, domain.ValidationError(fmt.Sprintf("lines[%d].quantity", i), "must be greater than zero")
		}
		if line.UnitPrice.IsNegative() {
			return domain.Totals{}, domain.ValidationError(fmt.Sprintf("lines[%d].unitPrice", i), "must be non-negative")
		}
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	subtotal = domain.Cents(subtotal)

	shipping := e.policy.FlatShipping
	if subtotal.GreaterThan(e.policy.FreeShippingOver) {
		shipping = decimal.Zero
	}
	shipping = domain.Cents(shipping)
	tax := domain.Cents(subtotal.Mul(e.policy.TaxRate))

	return domain.Totals{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal.Add(shipping).Add(tax),
	}, nil
}

// PriceItems считает итоги по позициям заказа.
func (e *Engine) PriceItems(items []domain.OrderItem) (domain.Totals, error) {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{UnitPrice: item.UnitPrice, Quantity: item.Quantity})
	}
	return e.Price(lines)
}

// Preview считает неавторитетный итог корзины по текущим ценам каталога.
// Пустая корзина даёт нулевые итоги без ошибки.
func (e *Engine) Preview(cart []domain.CartLine) (domain.Totals, error) {
	if len(cart) == 0 {
		return domain.Totals{Subtotal: decimal.Zero, Shipping: decimal.Zero, Tax: decimal.Zero, Total: decimal.Zero}, nil
	}
	lines := make([]Line, 0, len(cart))
	for _, line := range cart {
		lines = append(lines, Line{UnitPrice: line.Product.Price, Quantity: line.Quantity})
	}
	return e.Price(lines)
}
