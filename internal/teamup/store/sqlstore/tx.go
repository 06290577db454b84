package sqlstore

import (
	"context"
	"database/sql"

	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/jmoiron/sqlx"
)

type txStore struct {
	tx      *sqlx.Tx
	dialect Dialect
}

func (t *txStore) Commit() error   { return t.tx.Commit() }
func (t *txStore) Rollback() error { return t.tx.Rollback() }

// Close is a no-op; the caller commits or rolls back and the outer DB stays open.
func (t *txStore) Close() error { return nil }

// Ping is a no-op, the connection is already held by the transaction.
func (t *txStore) Ping(ctx context.Context) error { return nil }

// Nested transactions are not supported.
func (t *txStore) Tx(ctx context.Context) (store.Tx, error) { return nil, sql.ErrTxDone }

func (t *txStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return sql.ErrTxDone
}

func (t *txStore) Users() store.Users { return &usersRepo{h: t.tx, d: t.dialect} }
func (t *txStore) Teams() store.Teams { return &teamsRepo{h: t.tx, d: t.dialect} }
