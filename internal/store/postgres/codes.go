package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/hive-store/internal/models"
)

func (s *Store) PutCode(ctx context.Context, code models.VerificationCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO verification_codes (phone, code, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (phone) DO UPDATE
		 SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`,
		code.Phone, code.Code, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("put verification code: %w", err)
	}
	return nil
}

// TakeCode deletes and returns in one statement so two callers can never
// both receive the same code.
func (s *Store) TakeCode(ctx context.Context, phone string) (*models.VerificationCode, error) {
	code := &models.VerificationCode{}
	err := s.db.QueryRowContext(ctx,
		`DELETE FROM verification_codes
		 WHERE phone = $1
		 RETURNING phone, code, expires_at`,
		phone).Scan(&code.Phone, &code.Code, &code.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("take verification code: %w", err)
	}

	code.ExpiresAt = code.ExpiresAt.UTC()
	return code, nil
}
