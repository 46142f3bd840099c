package domain

import "github.com/shopspring/decimal"

// Reservation - результат атомарного списания остатка под позицию заказа.
type Reservation struct {
	ProductID string
	Name      string
	ImageURL  string
	Quantity  int
	// UnitPrice - цена на момент резерва, дальше не зависит от каталога.
	UnitPrice decimal.Decimal
	// Remaining - остаток после списания.
	Remaining int
}

// OrderItem превращает резерв в позицию заказа.
func (r Reservation) OrderItem() OrderItem {
	return OrderItem{
		ProductID: r.ProductID,
		Name:      r.Name,
		ImageURL:  r.ImageURL,
		Quantity:  r.Quantity,
		UnitPrice: r.UnitPrice,
	}
}

// ValidateReservation проверяет аргументы Reserve до обращения к хранилищу.
func ValidateReservation(productID string, quantity int) error {
	if productID == "" {
		return ValidationError("productId", "is required")
	}
	if quantity <= 0 {
		return ValidationError("quantity", "must be greater than zero")
	}
	return nil
}
