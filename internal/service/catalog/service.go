// Package catalog отдаёт карточки товаров и страницы каталога.
package catalog

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/flashcart/internal/domain"
)

// Service - read-only доступ к каталогу.
type Service struct {
	catalog domain.Catalog
	logger  *log.Entry
}

// NewService создаёт сервис каталога.
func NewService(catalog domain.Catalog, logger *log.Entry) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{catalog: catalog, logger: logger}
}

// Get возвращает товар по идентификатору.
func (s *Service) Get(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, domain.ValidationError("productId", "is required")
	}
	return s.catalog.GetProduct(ctx, productID)
}

// List возвращает страницу каталога; лимит и смещение приводятся к допустимым границам.
func (s *Service) List(ctx context.Context, query domain.ProductQuery) (domain.ProductPage, error) {
	query = query.Normalize()
	page, err := s.catalog.ListProducts(ctx, query)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"operation": "list_products",
			"category":  query.Category,
		}).Error("catalog query failed")
		return domain.ProductPage{}, err
	}
	return page, nil
}
