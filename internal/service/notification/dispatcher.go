// Package notification доставляет письма покупателю в фоне, не влияя на результат заказа.
package notification

import (
	"context"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
)

// DefaultSendTimeout ограничивает одну отправку письма.
const DefaultSendTimeout = 15 * time.Second

// ErrDispatcherClosed - Dispatch после Shutdown.
var ErrDispatcherClosed = errors.New("notification dispatcher is closed")

// Dispatcher запускает отправку в отдельной горутине с собственным таймаутом.
// Контекст вызывающего не передаётся: отмена запроса не отменяет письмо.
type Dispatcher struct {
	sender  domain.NotificationSender
	timeout time.Duration
	logger  *log.Entry
	metrics *metrics.NotificationMetrics

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// DispatcherOption настраивает Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithTimeout задаёт таймаут одной отправки.
func WithTimeout(timeout time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithMetrics подключает метрики отправки.
func WithMetrics(m *metrics.NotificationMetrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// NewDispatcher создаёт диспетчер поверх отправителя.
func NewDispatcher(sender domain.NotificationSender, logger *log.Entry, opts ...DispatcherOption) *Dispatcher {
	if logger == nil {
		logger = log.WithField("component", "notification-dispatcher")
	}
	d := &Dispatcher{sender: sender, timeout: DefaultSendTimeout, logger: logger}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch ставит письмо в отправку и сразу возвращает управление.
// Ошибки только логируются.
func (d *Dispatcher) Dispatch(n domain.Notification) {
	entry := d.logger.WithFields(log.Fields{
		"order_id": n.OrderID,
		"type":     n.Type,
	})

	d.mu.Lock()
	if d.closed || d.sender == nil {
		d.mu.Unlock()
		entry.WithError(ErrDispatcherClosed).Warn("notification dropped")
		return
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				entry.WithField("panic", r).Error("notification sender panicked")
			}
		}()

		done := d.metrics.Started(string(n.Type))
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		err := d.sender.Send(ctx, n)
		done(err)
		if err != nil {
			entry.WithError(err).Warn("failed to send notification")
			return
		}
		entry.Debug("notification sent")
	}()
}

// Shutdown запрещает новые отправки и ждёт завершения текущих.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ domain.Notifier = (*Dispatcher)(nil)
