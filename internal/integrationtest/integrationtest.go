// Package integrationtest provides db helpers used in integration tests.
package integrationtest

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-petr/pet-ledger/db"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	_ "github.com/lib/pq" // postgres driver
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Postgres is a disposable PostgreSQL instance with the ledger schema applied.
type Postgres struct {
	DB        *sql.DB
	container *tcpostgres.PostgresContainer
}

// StartPostgres starts a PostgreSQL container and migrates it up.
//
// It is meant to be called once from TestMain. Call Terminate when the tests are done.
func StartPostgres(ctx context.Context) (*Postgres, error) {
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger"),
		tcpostgres.WithUsername("ledger"),
		tcpostgres.WithPassword("secret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("start postgres container: %w", err)
	}

	p := &Postgres{container: container}

	source, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		p.Terminate(ctx)
		return nil, fmt.Errorf("connection string: %w", err)
	}

	p.DB, err = dbpkg.Setup("postgres", source)
	if err != nil {
		p.Terminate(ctx)
		return nil, fmt.Errorf("db initialization: %w", err)
	}

	if err := MigrateUp(p.DB); err != nil {
		p.Terminate(ctx)
		return nil, err
	}

	return p, nil
}

// MigrateUp applies the ledger migrations.
func MigrateUp(conn *sql.DB) error {
	src, err := db.Source()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	if err := dbpkg.MigrateUp(conn, src); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}

	return nil
}

// MigrateDown reverts the ledger migrations.
func MigrateDown(conn *sql.DB) error {
	src, err := db.Source()
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	if err := dbpkg.MigrateDown(conn, src); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}

	return nil
}

// Terminate closes the connection and removes the container.
func (p *Postgres) Terminate(ctx context.Context) {
	if p.DB != nil {
		_ = p.DB.Close()
	}

	_ = p.container.Terminate(ctx)
}

// Flush flushes all db tables without droping.
func Flush(t *testing.T, db *sql.DB) {
	t.Helper()

	var tables string

	const query = `
	SELECT string_agg(table_name, ', ')
	FROM information_schema.tables
	WHERE table_schema='public';`

	row := db.QueryRow(query)

	err := row.Scan(&tables)
	if err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}

	if _, err := db.Exec(`TRUNCATE TABLE ` + tables + " RESTART IDENTITY CASCADE"); err != nil {
		t.Fatalf("db cleanup failed. err: %v", err)
	}
}

// SetupTX sets up a database transaction to be used in tests.
//
// Once the tests are done it will rollback the transaction.
func SetupTX(t *testing.T, db *sql.DB) *sql.Tx {
	t.Helper()

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("db.Begin() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := tx.Rollback(); err != nil {
			t.Fatalf("tx.Rollback() failed: %v", err)
		}
	})

	return tx
}
