// Package postgres is the durable backend built on database/sql and lib/pq.
package postgres

import (
	"context"
	"database/sql"

	"github.com/safar/hive-store/internal/database"
	"github.com/safar/hive-store/internal/store"
)

type Store struct {
	db     *sql.DB
	txOpts database.TxOptions
}

var _ store.Store = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db, txOpts: database.DefaultTxOptions()}
}

func (s *Store) WithTxOptions(opts database.TxOptions) *Store {
	s.txOpts = opts
	return s
}

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// InTx runs fn in a READ COMMITTED transaction. Products are locked row by
// row with FOR UPDATE, so concurrent checkouts on the same product queue up
// instead of losing updates. fn may run more than once on deadlock.
func (s *Store) InTx(ctx context.Context, fn func(store.Tx) error) error {
	return database.WithRetry(ctx, s.db, s.txOpts, func(tx *sql.Tx) error {
		return fn(&pgTx{tx: tx})
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}
