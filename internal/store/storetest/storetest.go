// Package storetest is a behaviour suite every store.Store backend must pass.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

func Run(t *testing.T, newStore Factory) {
	t.Run("Products", func(t *testing.T) { testProducts(t, newStore(t)) })
	t.Run("ProductDefaults", func(t *testing.T) { testProductDefaults(t, newStore(t)) })
	t.Run("SetStock", func(t *testing.T) { testSetStock(t, newStore(t)) })
	t.Run("Ratings", func(t *testing.T) { testRatings(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Codes", func(t *testing.T) { testCodes(t, newStore(t)) })
	t.Run("TxCommit", func(t *testing.T) { testTxCommit(t, newStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, newStore(t)) })
	t.Run("TxDeductGuard", func(t *testing.T) { testTxDeductGuard(t, newStore(t)) })
	t.Run("ListOrders", func(t *testing.T) { testListOrders(t, newStore(t)) })
	t.Run("ListOrdersByTimestamp", func(t *testing.T) { testListOrdersByTimestamp(t, newStore(t)) })
	t.Run("ConcurrentDeduct", func(t *testing.T) { testConcurrentDeduct(t, newStore(t)) })
}

func mustCreateProduct(t *testing.T, s store.Store, id, price string, stock int) *models.Product {
	t.Helper()
	p, err := s.CreateProduct(context.Background(), store.NewProduct{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.RequireFromString(price),
		Category: "Shirts",
		Colors:   []string{"black", "white"},
		Stock:    stock,
	})
	require.NoError(t, err)
	return p
}

func testProducts(t *testing.T, s store.Store) {
	ctx := context.Background()

	mustCreateProduct(t, s, "p1", "49.99", 10)
	mustCreateProduct(t, s, "p2", "89.99", 0)

	got, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Product p1", got.Name)
	assert.True(t, got.Price.Equal(decimal.RequireFromString("49.99")))
	assert.Equal(t, []string{"black", "white"}, got.Colors)
	assert.Equal(t, 10, got.Stock)
	assert.False(t, got.CreatedAt.IsZero())

	list, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)
	assert.Equal(t, "p2", list[1].ID)

	_, err = s.GetProduct(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.CreateProduct(ctx, store.NewProduct{ID: "p1", Name: "dup", Price: decimal.NewFromInt(1)})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.CreateProduct(ctx, store.NewProduct{ID: "p3", Price: decimal.NewFromInt(1)})
	assert.True(t, store.IsValidation(err))

	_, err = s.CreateProduct(ctx, store.NewProduct{ID: "p4", Name: "Gold", Price: store.MaxPrice, Stock: math.MaxInt})
	require.NoError(t, err)
	gold, err := s.GetProduct(ctx, "p4")
	require.NoError(t, err)
	assert.True(t, gold.Price.Equal(store.MaxPrice))
	assert.Equal(t, store.MaxStock, gold.Stock)

	_, err = s.CreateProduct(ctx, store.NewProduct{ID: "p5", Name: "Too much", Price: store.MaxPrice.Add(decimal.NewFromInt(1))})
	assert.True(t, store.IsValidation(err))
}

func testProductDefaults(t *testing.T, s store.Store) {
	ctx := context.Background()

	p, err := s.CreateProduct(ctx, store.NewProduct{Name: "Cap", Price: decimal.RequireFromString("12.345"), Stock: -4})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, models.DefaultCategory, p.Category)
	assert.Equal(t, models.DefaultImage, p.Image)
	assert.Equal(t, []string{}, p.Colors)
	assert.Zero(t, p.Stock)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("12.35")), "price %s", p.Price)

	again, err := s.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)
	assert.Equal(t, []string{}, again.Colors)
}

func testSetStock(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 5)

	p, err := s.SetStock(ctx, "p1", 42)
	require.NoError(t, err)
	assert.Equal(t, 42, p.Stock)

	p, err = s.SetStock(ctx, "p1", -7)
	require.NoError(t, err)
	assert.Zero(t, p.Stock)

	p, err = s.SetStock(ctx, "p1", math.MaxInt)
	require.NoError(t, err)
	assert.Equal(t, store.MaxStock, p.Stock)

	_, err = s.SetStock(ctx, "missing", 1)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testRatings(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 5)

	require.NoError(t, s.UpsertRating(ctx, "p1", "alice", 5))
	require.NoError(t, s.UpsertRating(ctx, "p1", "bob", 9))
	require.NoError(t, s.UpsertRating(ctx, "p1", "alice", 2))

	ratings, err := s.GetRatings(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, models.Rating{ProductID: "p1", UserID: "alice", Rating: 2}, ratings[0])
	assert.Equal(t, models.Rating{ProductID: "p1", UserID: "bob", Rating: 5}, ratings[1])

	require.NoError(t, s.UpsertRating(ctx, "p1", "carol", -3))
	ratings, err = s.GetRatings(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, ratings[2].Rating)

	err = s.UpsertRating(ctx, "missing", "alice", 3)
	assert.ErrorIs(t, err, store.ErrNotFound)

	empty, err := s.GetRatings(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, store.NewUser{ID: "u1", Email: "Alice@Example.com", Phone: "+21611111111"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", u.Email)
	assert.Equal(t, "alice", u.Name)
	assert.Equal(t, models.RoleUser, u.Role)

	got, err := s.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "+21611111111", got.Phone)

	_, err = s.CreateUser(ctx, store.NewUser{ID: "u2", Email: "ALICE@example.com"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = s.CreateUser(ctx, store.NewUser{ID: "u3", Email: "other@example.com", Phone: "+21611111111"})
	assert.ErrorIs(t, err, store.ErrConflict)

	// Users without a phone never collide with each other.
	_, err = s.CreateUser(ctx, store.NewUser{ID: "u4", Email: "a@example.com"})
	require.NoError(t, err)
	_, err = s.CreateUser(ctx, store.NewUser{ID: "u5", Email: "b@example.com"})
	require.NoError(t, err)

	_, err = s.GetUser(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testCodes(t *testing.T, s store.Store) {
	ctx := context.Background()
	expires := time.Now().Add(10 * time.Minute).UTC().Truncate(time.Microsecond)

	got, err := s.TakeCode(ctx, "+21622222222")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.PutCode(ctx, models.VerificationCode{Phone: "+21622222222", Code: "111111", ExpiresAt: expires}))
	require.NoError(t, s.PutCode(ctx, models.VerificationCode{Phone: "+21622222222", Code: "222222", ExpiresAt: expires}))

	got, err = s.TakeCode(ctx, "+21622222222")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "222222", got.Code)
	assert.True(t, got.ExpiresAt.Equal(expires))

	got, err = s.TakeCode(ctx, "+21622222222")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func newOrder(id string, items ...models.OrderLineItem) *models.Order {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return &models.Order{
		ID:        id,
		UserID:    "u1",
		UserEmail: "u1@example.com",
		Items:     items,
		Total:     total,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func testTxCommit(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 5)

	err := s.InTx(ctx, func(tx store.Tx) error {
		p, err := tx.LockProduct(ctx, "p1")
		if err != nil {
			return err
		}
		if err := tx.DeductStock(ctx, p.ID, 2); err != nil {
			return err
		}
		again, err := tx.LockProduct(ctx, "p1")
		if err != nil {
			return err
		}
		if again.Stock != 3 {
			return fmt.Errorf("expected staged stock 3, got %d", again.Stock)
		}
		return tx.InsertOrder(ctx, newOrder("o1", models.OrderLineItem{ProductID: "p1", Name: p.Name, Price: p.Price, Quantity: 2}))
	})
	require.NoError(t, err)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Stock)

	o, err := s.GetOrder(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, o.Total.Equal(decimal.RequireFromString("20.00")))
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
	assert.Equal(t, "Product p1", o.Items[0].Name)

	_, err = s.GetOrder(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 5)
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.DeductStock(ctx, "p1", 5); err != nil {
			return err
		}
		if err := tx.InsertOrder(ctx, newOrder("o1", models.OrderLineItem{ProductID: "p1", Name: "x", Price: decimal.NewFromInt(10), Quantity: 5})); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock)

	_, err = s.GetOrder(ctx, "o1")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testTxDeductGuard(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 1)

	err := s.InTx(ctx, func(tx store.Tx) error {
		return tx.DeductStock(ctx, "p1", 2)
	})
	assert.ErrorIs(t, err, store.ErrInsufficientStock)

	err = s.InTx(ctx, func(tx store.Tx) error {
		_, err := tx.LockProduct(ctx, "missing")
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Stock)
}

func testListOrders(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 100)

	for _, id := range []string{"o1", "o2", "o3"} {
		err := s.InTx(ctx, func(tx store.Tx) error {
			return tx.InsertOrder(ctx, newOrder(id,
				models.OrderLineItem{ProductID: "p1", Name: "a", Price: decimal.NewFromInt(1), Quantity: 1},
				models.OrderLineItem{ProductID: "p1", Name: "b", Price: decimal.NewFromInt(2), Quantity: 3},
			))
		})
		require.NoError(t, err)
	}

	oldest, err := s.ListOrders(ctx, store.OldestFirst)
	require.NoError(t, err)
	require.Len(t, oldest, 3)
	assert.Equal(t, []string{"o1", "o2", "o3"}, orderIDs(oldest))

	// Line order is preserved.
	assert.Equal(t, "a", oldest[0].Items[0].Name)
	assert.Equal(t, "b", oldest[0].Items[1].Name)

	newest, err := s.ListOrders(ctx, store.NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"o3", "o2", "o1"}, orderIDs(newest))
}

func testListOrdersByTimestamp(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// Inserted out of timestamp order; "tie-a" and "tie-b" share a timestamp.
	inserts := []struct {
		id string
		at time.Time
	}{
		{"late", base.Add(2 * time.Hour)},
		{"tie-a", base.Add(time.Hour)},
		{"early", base},
		{"tie-b", base.Add(time.Hour)},
	}
	for _, in := range inserts {
		o := newOrder(in.id, models.OrderLineItem{ProductID: "p1", Name: "a", Price: decimal.NewFromInt(1), Quantity: 1})
		o.CreatedAt = in.at
		require.NoError(t, s.InTx(ctx, func(tx store.Tx) error { return tx.InsertOrder(ctx, o) }))
	}

	oldest, err := s.ListOrders(ctx, store.OldestFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late"}, orderIDs(oldest))

	newest, err := s.ListOrders(ctx, store.NewestFirst)
	require.NoError(t, err)
	assert.Equal(t, []string{"late", "tie-b", "tie-a", "early"}, orderIDs(newest))
}

func orderIDs(orders []models.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func testConcurrentDeduct(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustCreateProduct(t, s, "p1", "10.00", 10)

	concurrency := 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := s.InTx(ctx, func(tx store.Tx) error {
				p, err := tx.LockProduct(ctx, "p1")
				if err != nil {
					return err
				}
				if p.Stock < 1 {
					return store.ErrInsufficientStock
				}
				if err := tx.DeductStock(ctx, "p1", 1); err != nil {
					return err
				}
				return tx.InsertOrder(ctx, newOrder(fmt.Sprintf("o-%d", n),
					models.OrderLineItem{ProductID: "p1", Name: p.Name, Price: p.Price, Quantity: 1}))
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else if !errors.Is(err, store.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	p, err := s.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Zero(t, p.Stock)

	orders, err := s.ListOrders(ctx, store.OldestFirst)
	require.NoError(t, err)
	assert.Len(t, orders, 10)
}
