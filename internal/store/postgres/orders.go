package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/safar/hive-store/internal/database"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
)

type pgTx struct {
	tx *sql.Tx
}

func (t *pgTx) LockProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1 FOR UPDATE`

	product, err := scanProduct(t.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("lock product %s: %w", id, err)
	}
	return product, nil
}

func (t *pgTx) DeductStock(ctx context.Context, id string, quantity int) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE products
		 SET stock = stock - $1
		 WHERE id = $2
		   AND stock >= $1`,
		quantity, id)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return store.ErrInsufficientStock
	}

	return nil
}

func (t *pgTx) InsertOrder(ctx context.Context, order *models.Order) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO orders (id, user_id, user_email, user_phone, total, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.UserID, order.UserEmail, order.UserPhone, order.Total, order.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("insert order %s: %w", order.ID, store.ErrConflict)
		}
		return fmt.Errorf("create order: %w", err)
	}

	for i, item := range order.Items {
		_, err = t.tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, name, price, quantity)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			order.ID, i, item.ProductID, item.Name, item.Price, item.Quantity)
		if err != nil {
			return fmt.Errorf("create order item: %w", err)
		}
	}

	return nil
}

const orderColumns = `id, user_id, user_email, user_phone, total, created_at`

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.UserEmail,
		&order.UserPhone,
		&order.Total,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	order.CreatedAt = order.CreatedAt.UTC()
	order.Items = []models.OrderLineItem{}
	return order, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	items, err := s.loadItems(ctx, []string{order.ID})
	if err != nil {
		return nil, err
	}
	if found, ok := items[order.ID]; ok {
		order.Items = found
	}

	return order, nil
}

func (s *Store) ListOrders(ctx context.Context, sortOrder store.SortOrder) ([]models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at ASC, seq ASC`
	if sortOrder == store.NewestFirst {
		query = `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC, seq DESC`
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	orders := []models.Order{}
	var ids []string
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *order)
		ids = append(ids, order.ID)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orders) == 0 {
		return orders, nil
	}

	items, err := s.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if found, ok := items[orders[i].ID]; ok {
			orders[i].Items = found
		}
	}

	return orders, nil
}

func (s *Store) loadItems(ctx context.Context, orderIDs []string) (map[string][]models.OrderLineItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT order_id, product_id, name, price, quantity
		 FROM order_items
		 WHERE order_id = ANY($1)
		 ORDER BY order_id, position`,
		pq.Array(orderIDs))
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	defer rows.Close()

	itemsByOrder := make(map[string][]models.OrderLineItem, len(orderIDs))
	for rows.Next() {
		var orderID string
		var item models.OrderLineItem
		if err := rows.Scan(&orderID, &item.ProductID, &item.Name, &item.Price, &item.Quantity); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		itemsByOrder[orderID] = append(itemsByOrder[orderID], item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return itemsByOrder, nil
}
