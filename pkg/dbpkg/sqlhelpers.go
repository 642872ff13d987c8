// Package dbpkg provides helpers to make db initialization and testing easier.
package dbpkg

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
)

// Setup sets up connection with database.
func Setup(driver, dataSource string) (*sql.DB, error) {
	db, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	return db, nil
}

// MigrateUp applies every pending migration from src.
// A database that is already up to date is not an error.
func MigrateUp(db *sql.DB, src source.Driver) error {
	return withMigrate(db, src, (*migrate.Migrate).Up)
}

// MigrateDown reverts every applied migration.
func MigrateDown(db *sql.DB, src source.Driver) error {
	return withMigrate(db, src, (*migrate.Migrate).Down)
}

func withMigrate(db *sql.DB, src source.Driver, run func(*migrate.Migrate) error) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("postgres migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		_ = driver.Close()

		return fmt.Errorf("migration instance: %w", err)
	}

	// Closes the source and the dedicated connection, not db.
	defer m.Close()

	err = run(m)
	if err == nil || errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	var dirty migrate.ErrDirty
	if errors.As(err, &dirty) {
		return fmt.Errorf("migration failed: dirty database version %d: %w", dirty.Version, err)
	}

	return fmt.Errorf("migration failed: %w", err)
}
