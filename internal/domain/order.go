package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	// DefaultCountry подставляется, если страна доставки не указана.
	DefaultCountry = "US"
	// DefaultPaymentMethod подставляется, если способ оплаты не указан.
	DefaultPaymentMethod = "card"
	// InitialStatusNote - комментарий первой записи истории статусов.
	InitialStatusNote = "Order placed successfully"
)

// ShippingAddress - снимок адреса доставки на момент оформления заказа.
type ShippingAddress struct {
	FullName string `json:"fullName"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	ZipCode  string `json:"zipCode"`
	Country  string `json:"country"`
}

// Normalize обрезает пробелы и подставляет страну по умолчанию.
func (a ShippingAddress) Normalize() ShippingAddress {
	a.FullName = strings.TrimSpace(a.FullName)
	a.Address = strings.TrimSpace(a.Address)
	a.City = strings.TrimSpace(a.City)
	a.State = strings.TrimSpace(a.State)
	a.ZipCode = strings.TrimSpace(a.ZipCode)
	a.Country = strings.TrimSpace(a.Country)
	if a.Country == "" {
		a.Country = DefaultCountry
	}
	return a
}

// Validate возвращает ошибку валидации с перечнем пустых обязательных полей.
func (a ShippingAddress) Validate() error {
	var missing []string
	for _, f := range []struct {
		name  string
		value string
	}{
		{"fullName", a.FullName},
		{"address", a.Address},
		{"city", a.City},
		{"state", a.State},
		{"zipCode", a.ZipCode},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %w (missing: %s)", ErrValidation, ErrShippingAddressEmpty, strings.Join(missing, ", "))
	}
	return nil
}

// Totals - денежные итоги заказа.
type Totals struct {
	Subtotal decimal.Decimal
	Shipping decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

// OrderItem представляет одну позицию заказа с ценой на момент покупки.
type OrderItem struct {
	ProductID string
	// Name и ImageURL копируются из каталога для проекций и писем.
	Name      string
	ImageURL  string
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal возвращает стоимость позиции.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Order агрегирует состояние заказа и его позиции.
type Order struct {
	ID              string
	UserID          string
	CustomerEmail   string
	CustomerName    string
	Status          OrderStatus
	Totals          Totals
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Items           []OrderItem
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// OrderDraft - всё, что нужно хранилищу для создания агрегата. Идентификатор выдаёт хранилище.
type OrderDraft struct {
	UserID          string
	CustomerEmail   string
	CustomerName    string
	ShippingAddress ShippingAddress
	PaymentMethod   string
	Items           []OrderItem
	Totals          Totals
}

// NewOrder собирает заказ в статусе pending из черновика.
func NewOrder(id string, draft OrderDraft, now time.Time) Order {
	items := make([]OrderItem, len(draft.Items))
	copy(items, draft.Items)
	return Order{
		ID:              id,
		UserID:          draft.UserID,
		CustomerEmail:   draft.CustomerEmail,
		CustomerName:    draft.CustomerName,
		Status:          OrderStatusPending,
		Totals:          draft.Totals,
		ShippingAddress: draft.ShippingAddress,
		PaymentMethod:   draft.PaymentMethod,
		Items:           items,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrEmptyOrder)
	}
	t := o.Totals
	if t.Subtotal.IsNegative() || t.Shipping.IsNegative() || t.Tax.IsNegative() || t.Total.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем subtotal с суммой позиций: qty * price.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc = calc.Add(item.LineTotal())
	}
	if !calc.Round(2).Equal(t.Subtotal) {
		errs = append(errs, ErrSubtotalMismatch)
	}
	if !t.Subtotal.Add(t.Shipping).Add(t.Tax).Equal(t.Total) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}

// OwnedBy сообщает, принадлежит ли заказ пользователю.
func (o *Order) OwnedBy(userID string) bool {
	return userID != "" && o.UserID == userID
}

// StatusLogEntry - строка журнала статусов заказа (append-only).
type StatusLogEntry struct {
	OrderID   string
	Status    OrderStatus
	Note      string
	CreatedAt time.Time
}

// StatusChange описывает применённый переход статуса.
type StatusChange struct {
	Order    Order
	Previous OrderStatus
	Entry    StatusLogEntry
}
