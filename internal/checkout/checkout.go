// Package checkout turns a cart into a persisted order. Every stock deduction
// and the order insert happen in one store transaction: either the whole
// order is placed or nothing changes.
package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/safar/hive-store/internal/events"
	"github.com/safar/hive-store/internal/metrics"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrEmptyOrder    = store.NewValidationError("items", "at least one item is required")
	ErrTotalTooLarge = store.NewValidationError("total", "exceeds "+store.MaxOrderTotal.String())
)

// ItemRequest is one cart line as submitted by the client. Quantity is a
// float so malformed input (2.7, 0, -1) can be normalized instead of rejected.
type ItemRequest struct {
	ProductID string
	Quantity  float64
}

type Store interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	InTx(ctx context.Context, fn func(store.Tx) error) error
}

type Service struct {
	store     Store
	publisher events.Publisher
	metrics   *metrics.Registry
	log       logrus.FieldLogger
	now       func() time.Time
	newID     func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

func NewService(st Store, publisher events.Publisher, m *metrics.Registry, log logrus.FieldLogger, opts ...Option) *Service {
	s := &Service{
		store:     st,
		publisher: publisher,
		metrics:   m,
		log:       log,
		now:       time.Now,
		newID:     func() string { return "ord-" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type plannedLine struct {
	productID string
	quantity  int
}

func (s *Service) PlaceOrder(ctx context.Context, userID string, items []ItemRequest) (*models.Order, error) {
	start := time.Now()

	order, err := s.placeOrder(ctx, userID, items)

	s.metrics.CheckoutLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		s.log.WithError(err).WithFields(logrus.Fields{
			"user_id": userID,
			"items":   len(items),
		}).Warn("order rejected")
		return nil, err
	}

	s.metrics.OrdersPlaced.Inc()
	s.metrics.OrderRevenue.Add(order.Total.InexactFloat64())
	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"items":    len(order.Items),
		"total":    order.Total.StringFixed(2),
	}).Info("order placed")

	if err := s.publisher.PublishOrderPlaced(ctx, events.NewOrderPlaced(*order)); err != nil {
		s.metrics.EventsFailed.Inc()
		s.log.WithError(err).WithField("order_id", order.ID).Error("failed to publish order event")
	}

	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, userID string, items []ItemRequest) (*models.Order, error) {
	if len(items) == 0 {
		return nil, ErrEmptyOrder
	}

	var email, phone string
	user, err := s.store.GetUser(ctx, userID)
	switch {
	case err == nil:
		email, phone = user.Email, user.Phone
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	var order *models.Order
	err = s.store.InTx(ctx, func(tx store.Tx) error {
		// The callback may be retried; everything it builds starts fresh.
		lines, plan, total, err := validate(ctx, tx, items)
		if err != nil {
			return err
		}

		for _, p := range plan {
			if err := tx.DeductStock(ctx, p.productID, p.quantity); err != nil {
				return err
			}
		}

		o := &models.Order{
			ID:        s.newID(),
			UserID:    userID,
			UserEmail: email,
			UserPhone: phone,
			Items:     lines,
			Total:     total,
			CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		}
		if err := tx.InsertOrder(ctx, o); err != nil {
			return err
		}

		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	return order, nil
}

// validate reads every product once under the transaction's lock and checks
// the cumulative quantity requested per product, so a cart that lists one
// product on two lines cannot oversell it. Nothing is written here.
func validate(ctx context.Context, tx store.Tx, items []ItemRequest) ([]models.OrderLineItem, []plannedLine, decimal.Decimal, error) {
	lines := make([]models.OrderLineItem, 0, len(items))
	var plan []plannedLine
	planIdx := make(map[string]int)
	products := make(map[string]*models.Product)
	total := decimal.Zero

	for _, it := range items {
		product, ok := products[it.ProductID]
		if !ok {
			p, err := tx.LockProduct(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return nil, nil, decimal.Zero, &store.ProductNotFoundError{ProductID: it.ProductID}
				}
				return nil, nil, decimal.Zero, err
			}
			product = p
			products[it.ProductID] = p
		}

		qty := store.ClampQuantity(it.Quantity)

		idx, seen := planIdx[product.ID]
		if !seen {
			idx = len(plan)
			planIdx[product.ID] = idx
			plan = append(plan, plannedLine{productID: product.ID})
		}
		requested := plan[idx].quantity + qty
		if requested > product.Stock {
			return nil, nil, decimal.Zero, &store.InsufficientStockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.Stock,
				Requested: requested,
			}
		}
		plan[idx].quantity = requested

		line := models.OrderLineItem{
			ProductID: product.ID,
			Name:      product.Name,
			Price:     product.Price,
			Quantity:  qty,
		}
		total = total.Add(line.Subtotal())
		lines = append(lines, line)
	}

	if total.GreaterThan(store.MaxOrderTotal) {
		return nil, nil, decimal.Zero, ErrTotalTooLarge
	}

	return lines, plan, total, nil
}

func rejectReason(err error) string {
	switch {
	case store.IsValidation(err):
		return "validation"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}
