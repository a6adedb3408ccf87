// Package backend opens the store selected by configuration.
package backend

import (
	"context"
	"fmt"

	"github.com/safar/hive-store/internal/config"
	"github.com/safar/hive-store/internal/database"
	"github.com/safar/hive-store/internal/migrations"
	"github.com/safar/hive-store/internal/store"
	"github.com/safar/hive-store/internal/store/memory"
	"github.com/safar/hive-store/internal/store/postgres"
	"github.com/safar/hive-store/internal/store/rediscodes"
	"github.com/sirupsen/logrus"
)

// Open returns the main store. For Postgres the schema is migrated first.
func Open(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (store.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		if err := migrations.Up(cfg.Database.URL); err != nil {
			return nil, fmt.Errorf("migrate database: %w", err)
		}

		db, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, err
		}

		log.WithField("backend", cfg.Store.Backend).Info("connected to database")
		return postgres.New(db), nil

	case config.BackendMemory:
		log.WithField("backend", cfg.Store.Backend).Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// OpenCodes returns where verification codes live: Redis when configured,
// the main store otherwise. The returned close func is never nil.
func OpenCodes(ctx context.Context, cfg *config.Config, main store.Store, log logrus.FieldLogger) (store.Codes, func() error, error) {
	if cfg.Redis.URL == "" {
		return main, func() error { return nil }, nil
	}

	codes, err := rediscodes.Connect(ctx, cfg.Redis.URL)
	if err != nil {
		return nil, nil, err
	}

	log.Info("verification codes stored in redis")
	return codes, codes.Close, nil
}
