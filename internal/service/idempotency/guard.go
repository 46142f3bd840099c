// Package idempotency защищает оформление заказа от повторной обработки по Idempotency-Key
// и чистит просроченные ключи.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// DefaultTTL - сколько хранится ответ по ключу.
const DefaultTTL = 24 * time.Hour

// MaxKeyLength ограничивает длину ключа, присланного клиентом.
const MaxKeyLength = 255

// ErrRequestInProgress - запрос с тем же ключом ещё обрабатывается.
var ErrRequestInProgress = errors.New("request with the same idempotency key is already processing")

// Response - сохранённый ответ транспорта: код и тело.
type Response struct {
	Status int
	Body   []byte
}

// Failed сообщает, что ответ описывает ошибку сервера.
func (r Response) Failed() bool {
	return r.Status >= 500
}

// Guard выполняет обработчик не более одного раза на ключ и воспроизводит сохранённый ответ.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт guard поверх репозитория ключей.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.WithField("component", "idempotency-guard")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// ValidateKey проверяет ключ из заголовка.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return domain.ErrIdempotencyKeyRequired
	}
	if len(key) > MaxKeyLength {
		return domain.ValidationError("Idempotency-Key", fmt.Sprintf("must be at most %d characters", MaxKeyLength))
	}
	return nil
}

// Execute запускает handler под ключом. replayed=true означает, что ответ взят из хранилища.
// Пустой ключ или отсутствие репозитория выполняют handler без защиты.
func (g *Guard) Execute(
	ctx context.Context,
	key, requestHash string,
	handler func(ctx context.Context) Response,
) (resp Response, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if g == nil || g.repo == nil || key == "" {
		return handler(ctx), false, nil
	}
	if err := ValidateKey(key); err != nil {
		return Response{}, false, err
	}

	entry := g.logger.WithField("idempotency_key", key)

	if _, err := g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl)); err != nil {
		return g.replay(ctx, entry, key, err)
	}

	resp = handler(ctx)
	// Ответ сохраняем даже при отменённом запросе: обработка уже завершилась.
	storeCtx := context.WithoutCancel(ctx)
	if resp.Failed() {
		// После 5xx ключ освобождается: повтор с тем же ключом выполнится заново.
		if err := g.repo.Delete(storeCtx, key); err != nil {
			entry.WithError(err).Warn("failed to release idempotency key")
		}
		return resp, false, nil
	}
	if err := g.repo.MarkDone(storeCtx, key, resp.Body, resp.Status); err != nil {
		entry.WithError(err).Warn("failed to store idempotent response")
	}
	return resp, false, nil
}

func (g *Guard) replay(ctx context.Context, entry *log.Entry, key string, createErr error) (Response, bool, error) {
	switch {
	case errors.Is(createErr, domain.ErrIdempotencyHashMismatch):
		return Response{}, false, createErr
	case errors.Is(createErr, domain.ErrIdempotencyKeyAlreadyExists):
		record, err := g.repo.Get(ctx, key)
		if err != nil {
			return Response{}, false, fmt.Errorf("load idempotency record: %w", err)
		}
		switch record.Status {
		case domain.IdempotencyStatusDone, domain.IdempotencyStatusFailed:
			entry.WithField("status", record.Status).Debug("replaying stored response")
			return Response{Status: record.HTTPStatus, Body: record.ResponseBody}, true, nil
		case domain.IdempotencyStatusProcessing:
			return Response{}, false, ErrRequestInProgress
		default:
			return Response{}, false, fmt.Errorf("unknown idempotency status %q", record.Status)
		}
	default:
		entry.WithError(createErr).Warn("failed to create idempotency record")
		return Response{}, false, fmt.Errorf("create idempotency record: %w", createErr)
	}
}
