package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/hive-store/internal/database"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
)

func (s *Store) CreateUser(ctx context.Context, nu store.NewUser) (*models.User, error) {
	nu, err := store.ApplyUserDefaults(nu)
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO users (id, email, name, phone, role, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NOW())
		RETURNING id, email, name, COALESCE(phone, ''), role, created_at`

	user := &models.User{}
	err = s.db.QueryRowContext(ctx, query, nu.ID, nu.Email, nu.Name, nu.Phone, nu.Role).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	query := `
		SELECT id, email, name, COALESCE(phone, ''), role, created_at
		FROM users
		WHERE id = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.Phone,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	user.CreatedAt = user.CreatedAt.UTC()
	return user, nil
}
