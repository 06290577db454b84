// Package sqlstore implements store.Store on top of sqlx. Queries are
// written with '?' placeholders and rebound for the driver, so the sqlite
// and postgres drivers share every repository.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/teamup/internal/teamup/store"
	"github.com/jmoiron/sqlx"
)

// Dialect captures the differences between supported databases.
type Dialect struct {
	Name string

	// TimestampCast is appended to placeholders whose type the database
	// cannot infer, e.g. values in an INSERT ... SELECT list.
	TimestampCast string

	// IsUniqueViolation reports whether err is a unique constraint failure.
	IsUniqueViolation func(error) bool
}

type Store struct {
	db      *sqlx.DB
	dialect Dialect
}

var _ store.Store = (*Store)(nil)

func New(db *sqlx.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// DB exposes the underlying handle for drivers (migrations).
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Tx starts a read/write transaction and returns a Tx-scoped Store.
func (s *Store) Tx(ctx context.Context) (store.Tx, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &txStore{tx: tx, dialect: s.dialect}, nil
}

// WithTx executes fn within a transaction, automatically handling commit/rollback.
func (s *Store) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.Tx(ctx)
	if err != nil {
		return err
	}

	// Rollback after a successful commit is a harmless ErrTxDone.
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *Store) Users() store.Users { return &usersRepo{h: s.db, d: s.dialect} }
func (s *Store) Teams() store.Teams { return &teamsRepo{h: s.db, d: s.dialect} }

func mapNotFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

// expectOne turns a write that matched no rows into ErrGuardFailed.
func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrGuardFailed
	}
	return nil
}
