package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation - запрос заполнен некорректно, состояние не менялось.
	ErrValidation = errors.New("validation failed")
	// ErrEmptyOrder - в заказе нет ни одной позиции.
	ErrEmptyOrder = errors.New("order must contain at least one item")
	// ErrInvalidStatus - статус не входит в перечень допустимых.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrTransitionNotAllowed - переход запрещён политикой статусов.
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
	// ErrUnauthorized - вызов без идентифицированного пользователя.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden - пользователь известен, но не владеет ресурсом.
	ErrForbidden = errors.New("forbidden")
	// ErrProductNotFound возвращается, если товара нет в каталоге.
	ErrProductNotFound = errors.New("product not found")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOutOfStock - на складе меньше единиц, чем запрошено.
	ErrOutOfStock = errors.New("insufficient stock")
	// ErrPaymentDeclined - платёж отклонён провайдером (бизнес-ошибка).
	ErrPaymentDeclined = errors.New("payment declined")
	// ErrConfiguration - обязательная инфраструктура не настроена или недоступна.
	ErrConfiguration = errors.New("configuration error")
	// ErrOrderIDConflict - сгенерированный идентификатор заказа уже занят.
	ErrOrderIDConflict = errors.New("order id conflict")
	// ErrOutboxPublish - ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// Ошибки инвариантов агрегата заказа.
	ErrUserRequired         = errors.New("user_id is required")
	ErrItemQtyInvalid       = errors.New("item quantity must be greater than zero")
	ErrItemPriceInvalid     = errors.New("item price must be non-negative")
	ErrSubtotalMismatch     = errors.New("order subtotal does not match items sum")
	ErrTotalMismatch        = errors.New("order total does not match subtotal + shipping + tax")
	ErrAmountNegative       = errors.New("order amounts must be non-negative")
	ErrShippingAddressEmpty = errors.New("shipping address is incomplete")
)

// OutOfStockError уточняет ErrOutOfStock конкретным товаром.
type OutOfStockError struct {
	ProductID   string
	ProductName string
	Requested   int
	Available   int
}

func (e *OutOfStockError) Error() string {
	name := e.ProductName
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", name, e.Requested, e.Available)
}

// Unwrap позволяет проверять ошибку через errors.Is(err, ErrOutOfStock).
func (e *OutOfStockError) Unwrap() error {
	return ErrOutOfStock
}

// ValidationError связывает ErrValidation с полем запроса.
func ValidationError(field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// ErrorKind - стабильный код ошибки для внешних клиентов.
type ErrorKind string

const (
	KindValidation      ErrorKind = "validation"
	KindEmptyOrder      ErrorKind = "empty_order"
	KindInvalidStatus   ErrorKind = "invalid_status"
	KindUnauthorized    ErrorKind = "unauthorized"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindOutOfStock      ErrorKind = "out_of_stock"
	KindPaymentDeclined ErrorKind = "payment_declined"
	KindConfiguration   ErrorKind = "configuration"
	KindInternal        ErrorKind = "internal"
)

// KindOf классифицирует ошибку. Всё, что не распознано, считается внутренней ошибкой.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEmptyOrder):
		return KindEmptyOrder
	case errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrTransitionNotAllowed):
		return KindInvalidStatus
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrProductNotFound), errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrOutOfStock):
		return KindOutOfStock
	case errors.Is(err, ErrPaymentDeclined):
		return KindPaymentDeclined
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	default:
		return KindInternal
	}
}

// IsNotFound проверяет, относится ли ошибка к отсутствующему ресурсу.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}
