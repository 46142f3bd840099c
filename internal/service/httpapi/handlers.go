package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
)

// Заголовки идемпотентного оформления.
const (
	HeaderIdempotencyKey = "Idempotency-Key"
	HeaderReplayed       = "Idempotent-Replayed"
)

const checkoutRoute = "POST /api/orders"

type createOrderResponse struct {
	Success bool                `json:"success"`
	Order   domain.OrderReceipt `json:"order"`
}

type statusUpdateRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

type statusUpdateResponse struct {
	Success        bool               `json:"success"`
	OrderID        string             `json:"orderId"`
	PreviousStatus domain.OrderStatus `json:"previousStatus"`
	NewStatus      domain.OrderStatus `json:"newStatus"`
}

type cartSyncRequest struct {
	Items []domain.LineItem `json:"items"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromRequest(r)
	if !principal.Authenticated() {
		h.writeError(w, r, domain.ErrUnauthorized)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	key := r.Header.Get(HeaderIdempotencyKey)
	hash := domain.HashRequest([]byte(principal.UserID), []byte(checkoutRoute), body)

	resp, replayed, err := h.guard.Execute(r.Context(), key, hash, func(ctx context.Context) idempotency.Response {
		var req domain.CheckoutRequest
		if err := decodeJSON(body, &req); err != nil {
			return h.errorResponse(r, err)
		}
		receipt, err := h.checkout.Checkout(ctx, principal, req)
		if err != nil {
			return h.errorResponse(r, err)
		}
		data, err := json.Marshal(createOrderResponse{Success: true, Order: receipt})
		if err != nil {
			return h.errorResponse(r, err)
		}
		return idempotency.Response{Status: http.StatusCreated, Body: data}
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if replayed {
		w.Header().Set(HeaderReplayed, "true")
	}
	writeRaw(w, resp.Status, resp.Body)
}

// errorResponse превращает ошибку в сохраняемый ответ идемпотентного обработчика.
func (h *Handler) errorResponse(r *http.Request, err error) idempotency.Response {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).WithField("route", r.Pattern).Error("request failed")
	}
	data, _ := json.Marshal(body)
	return idempotency.Response{Status: status, Body: data}
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.List(r.Context(), PrincipalFromRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	views := make([]orderView, 0, len(list))
	for _, order := range list {
		views = append(views, newOrderView(order))
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": views})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), PrincipalFromRequest(r), r.PathValue("orderId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order": newOrderView(order)})
}

func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.orders.Status(r.Context(), PrincipalFromRequest(r), r.PathValue("orderId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newStatusView(view))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromRequest(r)
	if !principal.Authenticated() {
		h.writeError(w, r, domain.ErrUnauthorized)
		return
	}
	if !principal.IsAdmin() {
		h.writeError(w, r, domain.ErrForbidden)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req statusUpdateRequest
	if err := decodeJSON(body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	change, err := h.orders.Transition(r.Context(), principal, r.PathValue("orderId"), req.Status, req.Note)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statusUpdateResponse{
		Success:        true,
		OrderID:        change.Order.ID,
		PreviousStatus: change.Previous,
		NewStatus:      change.Order.Status,
	})
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	lines, err := h.cart.Get(r.Context(), PrincipalFromRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"cart": newCartView(lines)})
}

func (h *Handler) syncCart(w http.ResponseWriter, r *http.Request) {
	principal := PrincipalFromRequest(r)
	if !principal.Authenticated() {
		h.writeError(w, r, domain.ErrUnauthorized)
		return
	}
	body, err := readBody(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req cartSyncRequest
	if err := decodeJSON(body, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	lines, err := h.cart.Sync(r.Context(), principal, req.Items)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "cart": newCartView(lines)})
}

func (h *Handler) quoteCart(w http.ResponseWriter, r *http.Request) {
	quote, err := h.cart.Quote(r.Context(), PrincipalFromRequest(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteView(quote))
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	limit, err := intParam(values.Get("limit"), "limit")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	offset, err := intParam(values.Get("offset"), "offset")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	page, err := h.catalog.List(r.Context(), domain.ProductQuery{
		Category: values.Get("category"),
		Search:   values.Get("search"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	products := make([]productView, 0, len(page.Products))
	for _, p := range page.Products {
		products = append(products, newProductView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"products": products,
		"pagination": paginationView{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	})
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.Get(r.Context(), r.PathValue("productId"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": newProductView(product)})
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, domain.ValidationError(name, "must be a non-negative integer")
	}
	return v, nil
}
