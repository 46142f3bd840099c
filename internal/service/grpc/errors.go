package grpcsvc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
)

// toStatus переводит доменную ошибку в gRPC-статус.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return status.Error(codes.AlreadyExists, "idempotency key is already used with different request payload")
	case errors.Is(err, idempotency.ErrRequestInProgress):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, domain.ErrIdempotencyKeyRequired):
		return status.Error(codes.InvalidArgument, err.Error())
	}

	switch domain.KindOf(err) {
	case domain.KindValidation, domain.KindEmptyOrder, domain.KindInvalidStatus:
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.KindUnauthorized:
		return status.Error(codes.Unauthenticated, err.Error())
	case domain.KindForbidden:
		return status.Error(codes.PermissionDenied, err.Error())
	case domain.KindNotFound:
		return status.Error(codes.NotFound, err.Error())
	case domain.KindOutOfStock:
		return status.Error(codes.FailedPrecondition, err.Error())
	case domain.KindPaymentDeclined:
		return status.Error(codes.Aborted, err.Error())
	case domain.KindConfiguration:
		return status.Error(codes.Unavailable, "service is not configured")
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// serverFault - ошибки, при которых повтор запроса может пройти успешно.
func serverFault(code codes.Code) bool {
	switch code {
	case codes.Internal, codes.Unknown, codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return true
	default:
		return false
	}
}
