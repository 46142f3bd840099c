package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
)

const maxBodyBytes = 1 << 20

// Коды ошибок, которых нет в доменной таксономии.
const (
	kindIdempotencyMismatch   domain.ErrorKind = "idempotency_mismatch"
	kindIdempotencyInProgress domain.ErrorKind = "idempotency_in_progress"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    domain.ErrorKind `json:"kind"`
	Message string           `json:"message"`
}

// classify переводит ошибку в HTTP-статус и тело ответа.
func classify(err error) (int, errorBody) {
	switch {
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return http.StatusUnprocessableEntity, errorBody{errorDetail{kindIdempotencyMismatch, "Idempotency-Key is already used with a different request"}}
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return http.StatusConflict, errorBody{errorDetail{kindIdempotencyInProgress, err.Error()}}
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return http.StatusBadRequest, errorBody{errorDetail{domain.KindValidation, err.Error()}}
	}

	kind := domain.KindOf(err)
	status := http.StatusInternalServerError
	message := err.Error()
	switch kind {
	case domain.KindValidation, domain.KindEmptyOrder, domain.KindInvalidStatus:
		status = http.StatusBadRequest
	case domain.KindUnauthorized:
		status = http.StatusUnauthorized
	case domain.KindForbidden:
		status = http.StatusForbidden
	case domain.KindNotFound:
		status = http.StatusNotFound
	case domain.KindOutOfStock:
		status = http.StatusConflict
	case domain.KindPaymentDeclined:
		status = http.StatusPaymentRequired
	default:
		message = "Internal server error"
	}
	return status, errorBody{errorDetail{kind, message}}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("route", r.Pattern).Error("request failed")
	}
	writeJSON(w, status, body)
}

// readBody читает тело запроса целиком с ограничением размера.
func readBody(r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrValidation, err)
	}
	if len(data) > maxBodyBytes {
		return nil, domain.ValidationError("body", "is too large")
	}
	return data, nil
}

func decodeJSON(data []byte, dst any) error {
	if len(data) == 0 {
		return domain.ValidationError("body", "is required")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("%w: invalid JSON payload: %w", domain.ErrValidation, err)
	}
	return nil
}
