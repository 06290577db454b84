package sqlite

import (
	"context"
	"errors"
	"strings"

	"github.com/aussiebroadwan/teamup/internal/teamup/store/sqlstore"
	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const driverName = "sqlite"

func init() {
	// sqlx only knows mattn's "sqlite3" name out of the box.
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

type Store struct {
	*sqlstore.Store
}

// NewStore opens the database at dsn. SQLite allows a single writer, so the
// pool is pinned to one connection; this also keeps ":memory:" databases
// alive for the life of the store.
func NewStore(dsn string) (*Store, error) {
	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	// Enforce FKs
	if _, err := db.ExecContext(context.Background(), `PRAGMA foreign_keys = ON;`); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{Store: sqlstore.New(db, sqlstore.Dialect{
		Name:              driverName,
		IsUniqueViolation: isUniqueViolation,
	})}, nil
}

func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		// Extended result codes disabled; fall back to the message.
		return strings.Contains(se.Error(), "UNIQUE constraint failed")
	}
	return false
}
