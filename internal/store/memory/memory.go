// Package memory is the in-process backend. One Store is built at startup and
// shared by reference; every method is safe for concurrent use.
package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
)

type ratingKey struct {
	productID string
	userID    string
}

type Store struct {
	mu sync.RWMutex

	products     map[string]*models.Product
	productOrder []string

	ratings     map[ratingKey]int
	ratingOrder map[string][]string

	users map[string]*models.User

	orders  []models.Order
	orderID map[string]int

	codes map[string]models.VerificationCode

	now func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		products:    make(map[string]*models.Product),
		ratings:     make(map[ratingKey]int),
		ratingOrder: make(map[string][]string),
		users:       make(map[string]*models.User),
		orderID:     make(map[string]int),
		codes:       make(map[string]models.VerificationCode),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the clock used for created_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) Close() error { return nil }

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneProduct(p), nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]models.Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		products = append(products, *cloneProduct(s.products[id]))
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, np store.NewProduct) (*models.Product, error) {
	np, err := store.ApplyProductDefaults(np)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[np.ID]; exists {
		return nil, store.ErrConflict
	}

	p := &models.Product{
		ID:          np.ID,
		Name:        np.Name,
		Price:       np.Price,
		Image:       np.Image,
		Description: np.Description,
		Category:    np.Category,
		Colors:      slices.Clone(np.Colors),
		Stock:       np.Stock,
		CreatedAt:   s.now(),
	}
	s.products[p.ID] = p
	s.productOrder = append(s.productOrder, p.ID)

	return cloneProduct(p), nil
}

func (s *Store) SetStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Stock = store.ClampStock(stock)
	return cloneProduct(p), nil
}

func (s *Store) UpsertRating(ctx context.Context, productID, userID string, rating int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return store.ErrNotFound
	}

	key := ratingKey{productID: productID, userID: userID}
	if _, exists := s.ratings[key]; !exists {
		s.ratingOrder[productID] = append(s.ratingOrder[productID], userID)
	}
	s.ratings[key] = store.ClampRating(rating)
	return nil
}

func (s *Store) GetRatings(ctx context.Context, productID string) ([]models.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := s.ratingOrder[productID]
	ratings := make([]models.Rating, 0, len(users))
	for _, userID := range users {
		ratings = append(ratings, models.Rating{
			ProductID: productID,
			UserID:    userID,
			Rating:    s.ratings[ratingKey{productID: productID, userID: userID}],
		})
	}
	return ratings, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (s *Store) CreateUser(ctx context.Context, nu store.NewUser) (*models.User, error) {
	nu, err := store.ApplyUserDefaults(nu)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.ID == nu.ID || strings.EqualFold(u.Email, nu.Email) || (nu.Phone != "" && u.Phone == nu.Phone) {
			return nil, store.ErrConflict
		}
	}

	u := &models.User{
		ID:        nu.ID,
		Email:     nu.Email,
		Name:      nu.Name,
		Phone:     nu.Phone,
		Role:      nu.Role,
		CreatedAt: s.now(),
	}
	s.users[u.ID] = u

	clone := *u
	return &clone, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.orderID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o := cloneOrder(s.orders[idx])
	return &o, nil
}

// ListOrders sorts by CreatedAt; s.orders is in insertion order, so the stable
// sort breaks timestamp ties by insertion like the Postgres seq column.
func (s *Store) ListOrders(ctx context.Context, order store.SortOrder) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := make([]models.Order, 0, len(s.orders))
	for _, o := range s.orders {
		orders = append(orders, cloneOrder(o))
	}
	slices.SortStableFunc(orders, func(a, b models.Order) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	if order == store.NewestFirst {
		slices.Reverse(orders)
	}
	return orders, nil
}

func (s *Store) PutCode(ctx context.Context, code models.VerificationCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.codes[code.Phone] = code
	return nil
}

func (s *Store) TakeCode(ctx context.Context, phone string) (*models.VerificationCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[phone]
	if !ok {
		return nil, nil
	}
	delete(s.codes, phone)
	return &code, nil
}

func cloneProduct(p *models.Product) *models.Product {
	clone := *p
	clone.Colors = slices.Clone(p.Colors)
	if clone.Colors == nil {
		clone.Colors = []string{}
	}
	return &clone
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	return o
}
