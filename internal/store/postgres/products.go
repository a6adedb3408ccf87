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

const productColumns = `id, name, price, image, description, category, colors, stock, created_at`

func scanProduct(row rowScanner) (*models.Product, error) {
	product := &models.Product{}
	var colors pq.StringArray

	err := row.Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Image,
		&product.Description,
		&product.Category,
		&colors,
		&product.Stock,
		&product.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	product.Colors = []string(colors)
	if product.Colors == nil {
		product.Colors = []string{}
	}
	product.CreatedAt = product.CreatedAt.UTC()
	return product, nil
}

func (s *Store) CreateProduct(ctx context.Context, np store.NewProduct) (*models.Product, error) {
	np, err := store.ApplyProductDefaults(np)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO products (id, name, price, image, description, category, colors, stock, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		RETURNING ` + productColumns

	product, err := scanProduct(s.db.QueryRowContext(ctx, query,
		np.ID, np.Name, np.Price, np.Image, np.Description, np.Category, pq.Array(np.Colors), np.Stock))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return product, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	product, err := scanProduct(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return product, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *product)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return products, nil
}

func (s *Store) SetStock(ctx context.Context, id string, stock int) (*models.Product, error) {
	query := `
		UPDATE products
		SET stock = $1
		WHERE id = $2
		RETURNING ` + productColumns

	product, err := scanProduct(s.db.QueryRowContext(ctx, query, store.ClampStock(stock), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("set stock: %w", err)
	}

	return product, nil
}

func (s *Store) UpsertRating(ctx context.Context, productID, userID string, rating int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO product_ratings (product_id, user_id, rating)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (product_id, user_id) DO UPDATE SET rating = EXCLUDED.rating`,
		productID, userID, store.ClampRating(rating))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return store.ErrNotFound
		}
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

func (s *Store) GetRatings(ctx context.Context, productID string) ([]models.Rating, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT product_id, user_id, rating
		 FROM product_ratings
		 WHERE product_id = $1
		 ORDER BY seq`,
		productID)
	if err != nil {
		return nil, fmt.Errorf("get ratings: %w", err)
	}
	defer rows.Close()

	ratings := []models.Rating{}
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.ProductID, &r.UserID, &r.Rating); err != nil {
			return nil, fmt.Errorf("scan rating: %w", err)
		}
		ratings = append(ratings, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return ratings, nil
}
