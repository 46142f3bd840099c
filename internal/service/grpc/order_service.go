// Package grpcsvc публикует операции заказов как gRPC-сервис flashcart.v1.OrderService.
package grpcsvc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/checkout"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
	"github.com/vladislavdragonenkov/flashcart/internal/service/orders"
)

// Ключи метаданных, которые выставляет шлюз.
const (
	MetadataUserID         = "x-user-id"
	MetadataUserEmail      = "x-user-email"
	MetadataUserName       = "x-user-name"
	MetadataUserRole       = "x-user-role"
	MetadataIdempotencyKey = "idempotency-key"
)

// OrderService реализует gRPC API поверх сервисов оформления и заказов.
type OrderService struct {
	checkout *checkout.Service
	orders   *orders.Service
	guard    *idempotency.Guard
	logger   *log.Entry
}

var _ OrderServiceServer = (*OrderService)(nil)

// NewOrderService конструирует сервис с зависимостями. guard может быть nil.
func NewOrderService(checkoutSvc *checkout.Service, ordersSvc *orders.Service, guard *idempotency.Guard, logger *log.Entry) *OrderService {
	if logger == nil {
		logger = log.WithField("component", "grpc")
	}
	return &OrderService{
		checkout: checkoutSvc,
		orders:   ordersSvc,
		guard:    guard,
		logger:   logger,
	}
}

type failurePayload struct {
	Code    uint32 `json:"code"`
	Message string `json:"message"`
}

// Checkout оформляет заказ. Метаданные idempotency-key включают повтор сохранённого ответа.
func (s *OrderService) Checkout(ctx context.Context, req *CheckoutRequest) (*CheckoutResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	principal := principalFromContext(ctx)
	if !principal.Authenticated() {
		return nil, toStatus(domain.ErrUnauthorized)
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "request is not serializable")
	}
	hash := domain.HashRequest([]byte(principal.UserID), []byte(MethodCheckout), payload)

	resp, _, err := s.guard.Execute(ctx, metadataValue(ctx, MetadataIdempotencyKey), hash, func(ctx context.Context) idempotency.Response {
		receipt, err := s.checkout.Checkout(ctx, principal, domain.CheckoutRequest{
			ShippingAddress: req.ShippingAddress,
			PaymentMethod:   req.PaymentMethod,
			Items:           req.Items,
		})
		if err != nil {
			return s.failure(err)
		}
		body, err := json.Marshal(CheckoutResponse{Order: receipt})
		if err != nil {
			return s.failure(err)
		}
		return idempotency.Response{Status: http.StatusOK, Body: body}
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return decodeCheckout(resp)
}

func (s *OrderService) failure(err error) idempotency.Response {
	st := status.Convert(toStatus(err))
	if st.Code() == codes.Internal {
		s.logger.WithError(err).Error("checkout failed")
	}
	// Статус записи нужен только для признака повторяемости ошибки.
	httpStatus := http.StatusBadRequest
	if serverFault(st.Code()) {
		httpStatus = http.StatusInternalServerError
	}
	body, _ := json.Marshal(failurePayload{Code: uint32(st.Code()), Message: st.Message()})
	return idempotency.Response{Status: httpStatus, Body: body}
}

func decodeCheckout(resp idempotency.Response) (*CheckoutResponse, error) {
	if resp.Status != http.StatusOK {
		var payload failurePayload
		if err := json.Unmarshal(resp.Body, &payload); err != nil || payload.Code == 0 {
			return nil, status.Error(codes.Internal, "previous request with the same idempotency key failed")
		}
		return nil, status.Error(codes.Code(payload.Code), payload.Message)
	}
	out := &CheckoutResponse{}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return nil, status.Error(codes.Internal, "failed to decode stored response")
	}
	return out, nil
}

// GetOrder возвращает заказ владельцу или администратору.
func (s *OrderService) GetOrder(ctx context.Context, req *GetOrderRequest) (*GetOrderResponse, error) {
	if req == nil || strings.TrimSpace(req.OrderID) == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	order, err := s.orders.Get(ctx, principalFromContext(ctx), req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &GetOrderResponse{Order: toOrder(order)}, nil
}

// ListOrders возвращает заказы вызывающего пользователя.
func (s *OrderService) ListOrders(ctx context.Context, _ *ListOrdersRequest) (*ListOrdersResponse, error) {
	list, err := s.orders.List(ctx, principalFromContext(ctx))
	if err != nil {
		return nil, toStatus(err)
	}
	out := make([]Order, 0, len(list))
	for _, order := range list {
		out = append(out, toOrder(order))
	}
	return &ListOrdersResponse{Orders: out}, nil
}

func (s *OrderService) GetOrderStatus(ctx context.Context, req *GetOrderStatusRequest) (*GetOrderStatusResponse, error) {
	if req == nil || strings.TrimSpace(req.OrderID) == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}
	view, err := s.orders.Status(ctx, principalFromContext(ctx), req.OrderID)
	if err != nil {
		return nil, toStatus(err)
	}
	history := make([]StatusEntry, 0, len(view.History))
	for _, e := range view.History {
		history = append(history, StatusEntry{Status: e.Status, Note: e.Note, CreatedAt: e.CreatedAt})
	}
	return &GetOrderStatusResponse{
		OrderID:       view.OrderID,
		CurrentStatus: view.Status,
		Total:         view.Total,
		CreatedAt:     view.CreatedAt,
		UpdatedAt:     view.UpdatedAt,
		StatusHistory: history,
	}, nil
}

// UpdateOrderStatus - административный переход статуса.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, req *UpdateOrderStatusRequest) (*UpdateOrderStatusResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	change, err := s.orders.Transition(ctx, principalFromContext(ctx), req.OrderID, req.Status, req.Note)
	if err != nil {
		return nil, toStatus(err)
	}
	return &UpdateOrderStatusResponse{
		OrderID:        change.Order.ID,
		PreviousStatus: change.Previous,
		NewStatus:      change.Order.Status,
	}, nil
}

func principalFromContext(ctx context.Context) domain.Principal {
	return domain.Principal{
		UserID: metadataValue(ctx, MetadataUserID),
		Email:  metadataValue(ctx, MetadataUserEmail),
		Name:   metadataValue(ctx, MetadataUserName),
		Role:   metadataValue(ctx, MetadataUserRole),
	}
}

func metadataValue(ctx context.Context, key string) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(key)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}
