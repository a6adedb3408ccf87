// Package stats folds orders and products into the admin dashboard counters.
package stats

import (
	"context"
	"fmt"

	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
	"github.com/shopspring/decimal"
)

const LowStockThreshold = 10

type Stats struct {
	TotalOrders   int             `json:"totalOrders"`
	TotalRevenue  decimal.Decimal `json:"totalRevenue"`
	ProductsCount int             `json:"productsCount"`
	LowStockCount int             `json:"lowStockCount"`
	OrdersByMonth map[string]int  `json:"ordersByMonth"`
}

func Compute(orders []models.Order, products []models.Product) Stats {
	s := Stats{
		TotalOrders:   len(orders),
		TotalRevenue:  decimal.Zero,
		ProductsCount: len(products),
		OrdersByMonth: make(map[string]int),
	}

	for _, o := range orders {
		s.TotalRevenue = s.TotalRevenue.Add(o.Total)
		if !o.CreatedAt.IsZero() {
			s.OrdersByMonth[o.CreatedAt.UTC().Format("2006-01")]++
		}
	}

	for _, p := range products {
		if p.Stock < LowStockThreshold {
			s.LowStockCount++
		}
	}

	return s
}

type Source interface {
	ListOrders(ctx context.Context, order store.SortOrder) ([]models.Order, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type Service struct {
	src Source
}

func NewService(src Source) *Service {
	return &Service{src: src}
}

func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	orders, err := s.src.ListOrders(ctx, store.OldestFirst)
	if err != nil {
		return Stats{}, fmt.Errorf("load orders: %w", err)
	}

	products, err := s.src.ListProducts(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("load products: %w", err)
	}

	return Compute(orders, products), nil
}
