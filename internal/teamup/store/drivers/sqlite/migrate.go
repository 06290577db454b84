package sqlite

import (
	"errors"
	"fmt"

	"github.com/aussiebroadwan/teamup/internal/teamup/store/drivers/sqlite/migrations"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// ApplyMigrations applies any pending migrations embedded in the binary.
func (s *Store) ApplyMigrations() error {
	// 1. Wrap the open handle as a migrate driver.
	driver, err := sqlite.WithInstance(s.DB().DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("sqlite migrate driver: %w", err)
	}

	// 2. Read the embedded schema.
	src, err := iofs.New(migrations.Migrations, ".")
	if err != nil {
		return err
	}

	// 3. Apply all up migrations.
	instance, err := migrate.NewWithInstance("iofs", src, driverName, driver)
	if err != nil {
		return err
	}
	if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}
