// Package orders читает заказы с проверкой владельца и применяет переходы статусов
// по выбранной политике.
package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
	"github.com/vladislavdragonenkov/flashcart/internal/telemetry"
)

// StatusView - текущий статус заказа вместе с историей.
type StatusView struct {
	OrderID   string
	Status    domain.OrderStatus
	Total     decimal.Decimal
	CreatedAt time.Time
	UpdatedAt time.Time
	History   []domain.StatusLogEntry
}

// Service отвечает за чтение заказов и переходы статусов.
type Service struct {
	store    domain.OrderStore
	tx       domain.Transactor
	policy   domain.TransitionPolicy
	notifier domain.Notifier
	logger   *log.Entry
	metrics  *metrics.CheckoutMetrics
}

// Option настраивает Service.
type Option func(*Service)

// WithMetrics подключает счётчик переходов статусов.
func WithMetrics(m *metrics.CheckoutMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService создаёт сервис заказов. Пустая политика означает permissive.
func NewService(
	store domain.OrderStore,
	tx domain.Transactor,
	policy domain.TransitionPolicy,
	notifier domain.Notifier,
	logger *log.Entry,
	opts ...Option,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders")
	}
	if policy == "" {
		policy = domain.PolicyPermissive
	}
	s := &Service{
		store:    store,
		tx:       tx,
		policy:   policy,
		notifier: notifier,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy возвращает действующую политику переходов.
func (s *Service) Policy() domain.TransitionPolicy {
	return s.policy
}

// Get возвращает заказ владельцу или администратору.
func (s *Service) Get(ctx context.Context, principal domain.Principal, orderID string) (domain.Order, error) {
	if !principal.Authenticated() {
		return domain.Order{}, domain.ErrUnauthorized
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, domain.ValidationError("orderId", "is required")
	}

	order, err := s.store.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if !principal.CanView(order) {
		return domain.Order{}, fmt.Errorf("%w: order %s belongs to another user", domain.ErrForbidden, orderID)
	}
	return order, nil
}

// List возвращает заказы пользователя, новые первыми.
func (s *Service) List(ctx context.Context, principal domain.Principal) ([]domain.Order, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	return s.store.ListByUser(ctx, principal.UserID)
}

// Status возвращает текущий статус и историю в хронологическом порядке.
func (s *Service) Status(ctx context.Context, principal domain.Principal, orderID string) (StatusView, error) {
	order, err := s.Get(ctx, principal, orderID)
	if err != nil {
		return StatusView{}, err
	}
	history, err := s.store.History(ctx, order.ID)
	if err != nil {
		return StatusView{}, err
	}
	return StatusView{
		OrderID:   order.ID,
		Status:    order.Status,
		Total:     order.Totals.Total,
		CreatedAt: order.CreatedAt,
		UpdatedAt: order.UpdatedAt,
		History:   history,
	}, nil
}

// Transition меняет статус заказа от имени администратора.
// Письмо о смене статуса отправляется после фиксации и на результат не влияет.
func (s *Service) Transition(ctx context.Context, principal domain.Principal, orderID, rawStatus, note string) (change domain.StatusChange, err error) {
	ctx, span := telemetry.StartSpan(ctx, "orders.Transition",
		attribute.String("order_id", orderID),
		attribute.String("status", rawStatus),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	if !principal.Authenticated() {
		return domain.StatusChange{}, domain.ErrUnauthorized
	}
	if !principal.IsAdmin() {
		return domain.StatusChange{}, fmt.Errorf("%w: only administrators can update order status", domain.ErrForbidden)
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.StatusChange{}, domain.ValidationError("orderId", "is required")
	}
	status, err := domain.ParseOrderStatus(rawStatus)
	if err != nil {
		return domain.StatusChange{}, err
	}
	if s.tx == nil {
		return domain.StatusChange{}, fmt.Errorf("%w: order transactor is not configured", domain.ErrConfiguration)
	}

	err = s.tx.WithinTx(ctx, func(tx domain.Tx) error {
		applied, txErr := tx.Orders().AppendStatus(ctx, orderID, status, strings.TrimSpace(note), s.policy.Guard())
		if txErr != nil {
			return txErr
		}
		msg, txErr := domain.NewStatusChangedMessage(applied)
		if txErr != nil {
			return txErr
		}
		if _, txErr = tx.Outbox().Enqueue(ctx, msg); txErr != nil {
			return fmt.Errorf("enqueue %s: %w", domain.EventOrderStatusChanged, txErr)
		}
		change = applied
		return nil
	})

	entry := s.logger.WithFields(log.Fields{
		"operation": "update_status",
		"order_id":  orderID,
		"user_id":   principal.UserID,
		"status":    status,
	})
	if err != nil {
		entry.WithError(err).Warn("status update rejected")
		return domain.StatusChange{}, err
	}

	s.metrics.RecordTransition(string(status))
	entry.WithField("previous_status", change.Previous).Info("order status updated")

	s.notifyStatus(entry, change)
	return change, nil
}

func (s *Service) notifyStatus(entry *log.Entry, change domain.StatusChange) {
	if s.notifier == nil || !change.Entry.Status.NotifiesCustomer() {
		return
	}
	if change.Order.CustomerEmail == "" {
		entry.Debug("customer email unknown, status notification skipped")
		return
	}
	// Статус уже зафиксирован: сбой уведомителя не должен дойти до вызывающего.
	defer func() {
		if r := recover(); r != nil {
			entry.WithField("panic", r).Error("status notification dispatch panicked")
		}
	}()
	s.notifier.Dispatch(domain.StatusUpdateNotification(change))
}
