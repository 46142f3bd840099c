package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// Simulator одобряет любую авторизацию, кроме способов оплаты из списка отказов.
// Реального платёжного шлюза в системе нет.
type Simulator struct {
	mu       sync.Mutex
	declined map[string]struct{}
	calls    int
	logger   *log.Entry
}

// NewSimulator создаёт симулятор. declineMethods перечисляет способы оплаты, которые всегда отклоняются.
func NewSimulator(logger *log.Entry, declineMethods ...string) *Simulator {
	if logger == nil {
		logger = log.WithField("component", "payment-simulator")
	}
	declined := make(map[string]struct{}, len(declineMethods))
	for _, method := range declineMethods {
		method = domain.NormalizePaymentMethod(method)
		declined[method] = struct{}{}
	}
	return &Simulator{declined: declined, logger: logger}
}

// Authorize имитирует авторизацию суммы заказа.
func (s *Simulator) Authorize(ctx context.Context, req domain.PaymentRequest) (domain.PaymentStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if req.Amount.IsNegative() {
		return "", domain.ValidationError("amount", "must be non-negative")
	}

	method := domain.NormalizePaymentMethod(req.Method)

	s.mu.Lock()
	s.calls++
	_, decline := s.declined[method]
	s.mu.Unlock()

	entry := s.logger.WithFields(log.Fields{
		"user_id": req.UserID,
		"method":  method,
		"amount":  req.Amount.StringFixed(2),
	})
	if decline {
		entry.Info("payment declined by simulator")
		return domain.PaymentStatusDeclined, fmt.Errorf("%w: method %s", domain.ErrPaymentDeclined, method)
	}
	entry.Debug("payment authorized by simulator")
	return domain.PaymentStatusAuthorized, nil
}

// Calls возвращает число вызовов Authorize.
func (s *Simulator) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// ParseDeclineList разбирает список способов оплаты через запятую.
func ParseDeclineList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var _ domain.PaymentGateway = (*Simulator)(nil)
