package memory

import (
	"context"
	"fmt"

	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
)

// tx stages every write; commit applies them while the store's write lock is
// still held, so a failed callback leaves no trace.
type tx struct {
	s      *Store
	stock  map[string]int
	orders []models.Order
}

// InTx runs fn with the store's write lock held for its whole duration.
func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{s: s, stock: make(map[string]int)}
	if err := fn(t); err != nil {
		return err
	}

	t.commit()
	return nil
}

func (t *tx) LockProduct(ctx context.Context, id string) (*models.Product, error) {
	p, ok := t.s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	clone := cloneProduct(p)
	if staged, ok := t.stock[id]; ok {
		clone.Stock = staged
	}
	return clone, nil
}

func (t *tx) DeductStock(ctx context.Context, id string, quantity int) error {
	p, ok := t.s.products[id]
	if !ok {
		return store.ErrNotFound
	}

	current := p.Stock
	if staged, ok := t.stock[id]; ok {
		current = staged
	}
	if current < quantity {
		return store.ErrInsufficientStock
	}

	t.stock[id] = current - quantity
	return nil
}

func (t *tx) InsertOrder(ctx context.Context, order *models.Order) error {
	if _, exists := t.s.orderID[order.ID]; exists {
		return fmt.Errorf("insert order %s: %w", order.ID, store.ErrConflict)
	}
	for _, pending := range t.orders {
		if pending.ID == order.ID {
			return fmt.Errorf("insert order %s: %w", order.ID, store.ErrConflict)
		}
	}
	t.orders = append(t.orders, cloneOrder(*order))
	return nil
}

func (t *tx) commit() {
	for id, stock := range t.stock {
		t.s.products[id].Stock = stock
	}
	for _, o := range t.orders {
		t.s.orderID[o.ID] = len(t.s.orders)
		t.s.orders = append(t.s.orders, o)
	}
}
