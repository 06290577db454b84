package sqlstore

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Handler is satisfied by both *sqlx.DB and *sqlx.Tx, so repositories run
// the same queries inside and outside transactions.
type Handler interface {
	Rebind(string) string

	SelectContext(context.Context, any, string, ...any) error
	GetContext(context.Context, any, string, ...any) error
	QueryRowxContext(context.Context, string, ...any) *sqlx.Row
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

var (
	_ Handler = (*sqlx.DB)(nil)
	_ Handler = (*sqlx.Tx)(nil)
)
