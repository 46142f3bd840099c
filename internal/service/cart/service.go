// Package cart хранит серверную копию корзины и считает предварительный итог.
package cart

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/pricing"
)

// MaxLines ограничивает число разных товаров в корзине.
const MaxLines = 100

// Quote - корзина с предварительным расчётом по текущим ценам каталога.
type Quote struct {
	Lines  []domain.CartLine
	Totals domain.Totals
}

// Service синхронизирует корзину пользователя.
type Service struct {
	tx      domain.Transactor
	carts   domain.CartRepository
	pricing *pricing.Engine
	logger  *log.Entry
}

// NewService создаёт сервис корзины.
func NewService(tx domain.Transactor, carts domain.CartRepository, engine *pricing.Engine, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "cart")
	}
	if engine == nil {
		engine = pricing.NewEngine(pricing.DefaultPolicy())
	}
	return &Service{tx: tx, carts: carts, pricing: engine, logger: logger}
}

// Sync полностью заменяет корзину и возвращает сохранённые позиции.
// Повторы одного товара складываются, порядок первого появления сохраняется.
func (s *Service) Sync(ctx context.Context, principal domain.Principal, items []domain.LineItem) ([]domain.CartLine, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	if err := domain.ValidateLineItems(items); err != nil {
		return nil, err
	}

	merged := mergeItems(items)
	if len(merged) > MaxLines {
		return nil, domain.ValidationError("items", fmt.Sprintf("must contain at most %d products", MaxLines))
	}

	var lines []domain.CartLine
	err := s.tx.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Carts().Replace(ctx, principal.UserID, merged); err != nil {
			return err
		}
		var err error
		lines, err = tx.Carts().List(ctx, principal.UserID)
		return err
	})
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": "sync_cart",
			"user_id":   principal.UserID,
		}).Warn("cart sync failed")
		return nil, err
	}

	s.logger.WithFields(log.Fields{
		"operation": "sync_cart",
		"user_id":   principal.UserID,
		"lines":     len(lines),
	}).Debug("cart synced")
	return lines, nil
}

// Get возвращает корзину пользователя.
func (s *Service) Get(ctx context.Context, principal domain.Principal) ([]domain.CartLine, error) {
	if !principal.Authenticated() {
		return nil, domain.ErrUnauthorized
	}
	return s.carts.List(ctx, principal.UserID)
}

// Quote считает неавторитетный итог корзины той же политикой, что и оформление.
func (s *Service) Quote(ctx context.Context, principal domain.Principal) (Quote, error) {
	lines, err := s.Get(ctx, principal)
	if err != nil {
		return Quote{}, err
	}
	totals, err := s.pricing.Preview(lines)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Lines: lines, Totals: totals}, nil
}

func mergeItems(items []domain.LineItem) []domain.CartItem {
	index := make(map[string]int, len(items))
	out := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.ProductID)
		if i, ok := index[id]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[id] = len(out)
		out = append(out, domain.CartItem{ProductID: id, Quantity: item.Quantity})
	}
	return out
}
