// Package catalog serves product reads with their rating summary and the
// admin-side catalog writes.
package catalog

import (
	"context"
	"fmt"

	"github.com/safar/hive-store/internal/metrics"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/rating"
	"github.com/safar/hive-store/internal/store"
	"github.com/sirupsen/logrus"
)

// ProductView is a product as shown to a viewer, with ratings folded in.
type ProductView struct {
	models.Product
	rating.Summary
}

type Service struct {
	store   store.Catalog
	metrics *metrics.Registry
	log     logrus.FieldLogger
}

func NewService(st store.Catalog, m *metrics.Registry, log logrus.FieldLogger) *Service {
	return &Service{store: st, metrics: m, log: log}
}

func (s *Service) ListProducts(ctx context.Context, viewerID string) ([]ProductView, error) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}

	views := make([]ProductView, 0, len(products))
	for _, p := range products {
		v, err := s.view(ctx, p, viewerID)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func (s *Service) GetProduct(ctx context.Context, id, viewerID string) (*ProductView, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}

	v, err := s.view(ctx, *p, viewerID)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// AdminProducts is the admin listing: every product with its rating summary
// and no viewer-specific field.
func (s *Service) AdminProducts(ctx context.Context) ([]ProductView, error) {
	return s.ListProducts(ctx, "")
}

// RateProduct records userID's rating (clamped to 1..5, replacing any earlier
// one) and returns the product as that user now sees it.
func (s *Service) RateProduct(ctx context.Context, productID, userID string, value int) (*ProductView, error) {
	if userID == "" {
		return nil, store.NewValidationError("user", "is required")
	}

	if err := s.store.UpsertRating(ctx, productID, userID, store.ClampRating(value)); err != nil {
		return nil, err
	}

	s.metrics.Ratings.Inc()
	s.log.WithFields(logrus.Fields{
		"product_id": productID,
		"user_id":    userID,
		"rating":     store.ClampRating(value),
	}).Info("product rated")

	return s.GetProduct(ctx, productID, userID)
}

func (s *Service) SetStock(ctx context.Context, productID string, stock int) (*models.Product, error) {
	p, err := s.store.SetStock(ctx, productID, stock)
	if err != nil {
		return nil, err
	}

	s.metrics.StockUpdates.Inc()
	s.log.WithFields(logrus.Fields{
		"product_id": p.ID,
		"stock":      p.Stock,
	}).Info("stock updated")
	return p, nil
}

func (s *Service) CreateProduct(ctx context.Context, np store.NewProduct) (*models.Product, error) {
	p, err := s.store.CreateProduct(ctx, np)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"product_id": p.ID,
		"name":       p.Name,
		"price":      p.Price.StringFixed(2),
		"stock":      p.Stock,
	}).Info("product created")
	return p, nil
}

func (s *Service) view(ctx context.Context, p models.Product, viewerID string) (ProductView, error) {
	ratings, err := s.store.GetRatings(ctx, p.ID)
	if err != nil {
		return ProductView{}, fmt.Errorf("load ratings for %s: %w", p.ID, err)
	}
	return ProductView{Product: p, Summary: rating.Summarize(ratings, viewerID)}, nil
}
