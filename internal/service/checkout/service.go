// Package checkout оформляет заказ: резерв остатков, расчёт цены, оплата и сохранение
// выполняются в одной транзакции хранилища, письмо уходит после фиксации.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
	"github.com/vladislavdragonenkov/flashcart/internal/pricing"
	"github.com/vladislavdragonenkov/flashcart/internal/telemetry"
)

// Шаги оформления для метрик и трейсинга.
const (
	stepReserve = "reserve"
	stepPrice   = "price"
	stepPayment = "payment"
	stepPersist = "persist"
	stepCommit  = "commit"
)

// Service выполняет оформление заказа.
type Service struct {
	tx       domain.Transactor
	payments domain.PaymentGateway
	pricing  *pricing.Engine
	notifier domain.Notifier
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает метрики оформления.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService собирает сервис. notifier может быть nil: тогда письма не отправляются.
func NewService(
	tx domain.Transactor,
	payments domain.PaymentGateway,
	engine *pricing.Engine,
	notifier domain.Notifier,
	logger *log.Entry,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "checkout")
	}
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultPolicy())
	}
	s := &Service{
		tx:       tx,
		payments: payments,
		pricing:  engine,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Checkout оформляет заказ и возвращает его публичную проекцию.
// Любая ошибка до фиксации транзакции оставляет хранилище нетронутым.
func (s *Service) Checkout(ctx context.Context, principal domain.Principal, req domain.CheckoutRequest) (receipt domain.OrderReceipt, err error) {
	finish := s.metrics.CheckoutStarted()
	ctx, span := telemetry.StartSpan(ctx, "checkout.Checkout",
		attribute.String("user_id", principal.UserID),
		attribute.Int("items", len(req.Items)),
	)
	defer func() {
		finish(string(domain.KindOf(err)))
		telemetry.EndSpan(span, err)
	}()

	if s.tx == nil || s.payments == nil {
		return domain.OrderReceipt{}, fmt.Errorf("%w: checkout dependencies are not configured", domain.ErrConfiguration)
	}

	draft, lines, err := s.prepare(principal, req)
	if err != nil {
		return domain.OrderReceipt{}, err
	}

	entry := s.logger.WithFields(log.Fields{
		"operation": "checkout",
		"user_id":   principal.UserID,
		"trace_id":  telemetry.TraceID(ctx),
	})

	var order domain.Order
	commitStart := time.Now()
	err = s.tx.WithinTx(ctx, func(tx domain.Tx) error {
		created, txErr := s.placeOrder(ctx, tx, draft, lines)
		if txErr != nil {
			return txErr
		}
		order = created
		return nil
	})
	s.metrics.ObserveStep(stepCommit, time.Since(commitStart))
	if err != nil {
		logCheckoutFailure(entry, err)
		return domain.OrderReceipt{}, err
	}

	entry.WithFields(log.Fields{
		"order_id": order.ID,
		"total":    order.Totals.Total.StringFixed(2),
	}).Info("order placed")

	s.notifyConfirmation(entry, order)
	return order.Receipt(), nil
}

// prepare валидирует запрос и готовит черновик без обращения к хранилищу.
func (s *Service) prepare(principal domain.Principal, req domain.CheckoutRequest) (domain.OrderDraft, []domain.LineItem, error) {
	if !principal.Authenticated() {
		return domain.OrderDraft{}, nil, domain.ErrUnauthorized
	}
	if len(req.Items) == 0 {
		return domain.OrderDraft{}, nil, domain.ErrEmptyOrder
	}
	if err := domain.ValidateLineItems(req.Items); err != nil {
		return domain.OrderDraft{}, nil, err
	}

	address := req.ShippingAddress.Normalize()
	if err := address.Validate(); err != nil {
		return domain.OrderDraft{}, nil, err
	}

	method := domain.NormalizePaymentMethod(req.PaymentMethod)
	if err := domain.ValidatePaymentMethod(method); err != nil {
		return domain.OrderDraft{}, nil, err
	}

	name := strings.TrimSpace(principal.Name)
	if name == "" {
		name = address.FullName
	}

	draft := domain.OrderDraft{
		UserID:          principal.UserID,
		CustomerEmail:   strings.TrimSpace(principal.Email),
		CustomerName:    name,
		ShippingAddress: address,
		PaymentMethod:   method,
	}
	return draft, mergeLines(req.Items), nil
}

// mergeLines складывает повторы одного товара и сортирует позиции по ID,
// чтобы конкурирующие оформления блокировали строки в одном порядке.
func mergeLines(items []domain.LineItem) []domain.LineItem {
	byID := make(map[string]int, len(items))
	merged := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if idx, ok := byID[id]; ok {
			merged[idx].Quantity += item.Quantity
			continue
		}
		byID[id] = len(merged)
		merged = append(merged, domain.LineItem{ProductID: id, Quantity: item.Quantity})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ProductID < merged[j].ProductID })
	return merged
}

func (s *Service) placeOrder(ctx context.Context, tx domain.Tx, draft domain.OrderDraft, lines []domain.LineItem) (domain.Order, error) {
	items, err := s.reserve(ctx, tx.Ledger(), lines)
	if err != nil {
		return domain.Order{}, err
	}

	start := time.Now()
	totals, err := s.pricing.PriceItems(items)
	s.metrics.ObserveStep(stepPrice, time.Since(start))
	if err != nil {
		return domain.Order{}, fmt.Errorf("price order: %w", err)
	}

	start = time.Now()
	status, err := s.payments.Authorize(ctx, domain.PaymentRequest{
		UserID: draft.UserID,
		Method: draft.PaymentMethod,
		Amount: totals.Total,
	})
	s.metrics.ObserveStep(stepPayment, time.Since(start))
	if err != nil {
		return domain.Order{}, fmt.Errorf("authorize payment: %w", err)
	}
	if status != domain.PaymentStatusAuthorized {
		return domain.Order{}, fmt.Errorf("%w: status %s", domain.ErrPaymentDeclined, status)
	}

	start = time.Now()
	defer func() { s.metrics.ObserveStep(stepPersist, time.Since(start)) }()

	draft.Items = items
	draft.Totals = totals
	order, err := tx.Orders().Create(ctx, draft)
	if err != nil {
		return domain.Order{}, fmt.Errorf("create order: %w", err)
	}

	msg, err := domain.NewOrderCreatedMessage(order)
	if err != nil {
		return domain.Order{}, err
	}
	if _, err := tx.Outbox().Enqueue(ctx, msg); err != nil {
		return domain.Order{}, fmt.Errorf("enqueue %s: %w", domain.EventOrderCreated, err)
	}

	if _, err := tx.Carts().Clear(ctx, draft.UserID); err != nil {
		return domain.Order{}, fmt.Errorf("clear cart: %w", err)
	}
	return order, nil
}

// reserve списывает остаток по каждой позиции. Первая же ошибка прерывает транзакцию,
// и уже сделанные резервы откатываются вместе с ней.
func (s *Service) reserve(ctx context.Context, ledger domain.InventoryLedger, lines []domain.LineItem) ([]domain.OrderItem, error) {
	ctx, span := telemetry.StartSpan(ctx, "checkout.reserve", attribute.Int("lines", len(lines)))
	start := time.Now()
	items := make([]domain.OrderItem, 0, len(lines))

	var err error
	defer func() {
		s.metrics.ObserveStep(stepReserve, time.Since(start))
		telemetry.EndSpan(span, err)
	}()

	for _, line := range lines {
		var r domain.Reservation
		r, err = ledger.Reserve(ctx, line.ProductID, line.Quantity)
		s.metrics.RecordReservation(reservationResult(err))
		if err != nil {
			err = fmt.Errorf("reserve %s: %w", line.ProductID, err)
			return nil, err
		}
		items = append(items, r.OrderItem())
	}
	return items, nil
}

func reservationResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, domain.ErrProductNotFound):
		return "not_found"
	default:
		return "error"
	}
}

func (s *Service) notifyConfirmation(entry *log.Entry, order domain.Order) {
	if s.notifier == nil {
		return
	}
	if order.CustomerEmail == "" {
		entry.WithField("order_id", order.ID).Debug("customer email unknown, confirmation skipped")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			entry.WithFields(log.Fields{"order_id": order.ID, "panic": r}).Error("confirmation dispatch panicked")
		}
	}()
	s.notifier.Dispatch(domain.ConfirmationNotification(order))
}

func logCheckoutFailure(entry *log.Entry, err error) {
	kind := domain.KindOf(err)
	entry = entry.WithError(err).WithField("kind", kind)
	switch kind {
	case domain.KindInternal, domain.KindConfiguration:
		entry.Error("checkout failed")
	default:
		entry.Info("checkout rejected")
	}
}
