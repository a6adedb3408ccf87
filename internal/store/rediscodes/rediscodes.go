// Package rediscodes keeps verification codes in Redis, one key per phone.
package rediscodes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safar/hive-store/internal/models"
	"github.com/safar/hive-store/internal/store"
)

const keyPrefix = "hive:verification:"

// retention keeps an expired code around long enough for Consume to report
// it as expired rather than missing.
const retention = time.Hour

type Store struct {
	client *redis.Client
	now    func() time.Time
}

var _ store.Codes = (*Store)(nil)

func New(client *redis.Client) *Store {
	return &Store{client: client, now: time.Now}
}

func Connect(ctx context.Context, redisURL string) (*Store, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return New(client), nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

type storedCode struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (s *Store) PutCode(ctx context.Context, code models.VerificationCode) error {
	data, err := json.Marshal(storedCode{Code: code.Code, ExpiresAt: code.ExpiresAt})
	if err != nil {
		return fmt.Errorf("failed to marshal verification code: %w", err)
	}

	ttl := code.ExpiresAt.Sub(s.now()) + retention
	if ttl <= 0 {
		ttl = retention
	}

	if err := s.client.Set(ctx, keyPrefix+code.Phone, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store verification code: %w", err)
	}
	return nil
}

// TakeCode uses GETDEL so a code is handed out at most once.
func (s *Store) TakeCode(ctx context.Context, phone string) (*models.VerificationCode, error) {
	data, err := s.client.GetDel(ctx, keyPrefix+phone).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to take verification code: %w", err)
	}

	var sc storedCode
	if err := json.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verification code: %w", err)
	}

	return &models.VerificationCode{
		Phone:     phone,
		Code:      sc.Code,
		ExpiresAt: sc.ExpiresAt.UTC(),
	}, nil
}
