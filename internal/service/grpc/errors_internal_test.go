package grpcsvc

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
)

func TestToStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", domain.ValidationError("items", "is required"), codes.InvalidArgument},
		{"empty order", domain.ErrEmptyOrder, codes.InvalidArgument},
		{"invalid status", domain.ErrInvalidStatus, codes.InvalidArgument},
		{"unauthorized", domain.ErrUnauthorized, codes.Unauthenticated},
		{"forbidden", domain.ErrForbidden, codes.PermissionDenied},
		{"not found", fmt.Errorf("load: %w", domain.ErrOrderNotFound), codes.NotFound},
		{"out of stock", &domain.OutOfStockError{ProductID: "p-1", Requested: 2, Available: 1}, codes.FailedPrecondition},
		{"payment declined", domain.ErrPaymentDeclined, codes.Aborted},
		{"configuration", domain.ErrConfiguration, codes.Unavailable},
		{"internal", errors.New("boom"), codes.Internal},
		{"canceled", context.Canceled, codes.Canceled},
		{"in progress", idempotency.ErrRequestInProgress, codes.Aborted},
		{"hash mismatch", domain.ErrIdempotencyHashMismatch, codes.AlreadyExists},
		{"already status", status.Error(codes.NotFound, "x"), codes.NotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := status.Code(toStatus(tt.err))
			if got != tt.want {
				t.Fatalf("toStatus(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}

	if toStatus(nil) != nil {
		t.Fatal("toStatus(nil) must be nil")
	}
}

func TestToStatus_HidesInternalDetails(t *testing.T) {
	st := status.Convert(toStatus(errors.New("pq: connection refused to 10.0.0.1")))
	if st.Message() != "internal error" {
		t.Fatalf("unexpected message %q", st.Message())
	}
}
