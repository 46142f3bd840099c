// Package httpapi публикует операции оформления и просмотра заказов по HTTP/JSON.
package httpapi

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/metrics"
	"github.com/vladislavdragonenkov/flashcart/internal/service/cart"
	"github.com/vladislavdragonenkov/flashcart/internal/service/catalog"
	"github.com/vladislavdragonenkov/flashcart/internal/service/checkout"
	"github.com/vladislavdragonenkov/flashcart/internal/service/idempotency"
	"github.com/vladislavdragonenkov/flashcart/internal/service/orders"
)

// Services - прикладные сервисы, которые обслуживает HTTP-слой.
type Services struct {
	Checkout *checkout.Service
	Orders   *orders.Service
	Cart     *cart.Service
	Catalog  *catalog.Service
	// Guard может быть nil: тогда Idempotency-Key игнорируется.
	Guard *idempotency.Guard
}

// Handler держит зависимости HTTP-обработчиков.
type Handler struct {
	checkout *checkout.Service
	orders   *orders.Service
	cart     *cart.Service
	catalog  *catalog.Service
	guard    *idempotency.Guard
	logger   *log.Entry
	metrics  *metrics.HTTPMetrics
}

// Option настраивает Handler.
type Option func(*Handler)

// WithMetrics включает счётчики запросов.
func WithMetrics(m *metrics.HTTPMetrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// NewHandler собирает HTTP-слой поверх сервисов.
func NewHandler(services Services, logger *log.Entry, opts ...Option) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http")
	}
	h := &Handler{
		checkout: services.Checkout,
		orders:   services.Orders,
		cart:     services.Cart,
		catalog:  services.Catalog,
		guard:    services.Guard,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes возвращает маршрутизатор со всеми обработчиками и middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/orders", h.createOrder)
	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("GET /api/orders/{orderId}", h.getOrder)
	mux.HandleFunc("GET /api/orders/{orderId}/status", h.getOrderStatus)
	mux.HandleFunc("PATCH /api/orders/{orderId}/status", h.updateOrderStatus)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("PUT /api/cart", h.syncCart)
	mux.HandleFunc("GET /api/cart/quote", h.quoteCart)

	mux.HandleFunc("GET /api/products", h.listProducts)
	mux.HandleFunc("GET /api/products/{productId}", h.getProduct)

	return h.withRecovery(h.withRequestID(h.withLogging(mux)))
}
