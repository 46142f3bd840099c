package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// PaymentStatus описывает состояние платежа в системе.
type PaymentStatus string

const (
	// PaymentStatusAuthorized - сумма успешно зарезервирована у провайдера.
	PaymentStatusAuthorized PaymentStatus = "authorized"
	// PaymentStatusDeclined - провайдер отклонил платёж.
	PaymentStatusDeclined PaymentStatus = "declined"
)

// PaymentRequest - запрос на авторизацию суммы заказа.
type PaymentRequest struct {
	UserID string
	Method string
	Amount decimal.Decimal
}

// NormalizePaymentMethod приводит тег способа оплаты к нижнему регистру, пустой заменяет на card.
func NormalizePaymentMethod(method string) string {
	method = strings.ToLower(strings.TrimSpace(method))
	if method == "" {
		return DefaultPaymentMethod
	}
	return method
}

// ValidatePaymentMethod ограничивает длину и алфавит тега способа оплаты.
func ValidatePaymentMethod(method string) error {
	if len(method) > 32 {
		return ValidationError("paymentMethod", "is too long")
	}
	for _, r := range method {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' && r != '-' {
			return ValidationError("paymentMethod", "contains unsupported characters")
		}
	}
	return nil
}
