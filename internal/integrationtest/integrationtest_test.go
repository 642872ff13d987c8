//go:build integration

package integrationtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func tableExists(t *testing.T, conn *sql.DB, name string) bool {
	t.Helper()

	var exists bool

	err := conn.QueryRow(`SELECT to_regclass($1) IS NOT NULL`, name).Scan(&exists)
	require.NoError(t, err)

	return exists
}

func schemaVersion(t *testing.T, conn *sql.DB) (int64, bool) {
	t.Helper()

	var (
		version int64
		dirty   bool
	)

	err := conn.QueryRow(`SELECT version, dirty FROM schema_migrations`).Scan(&version, &dirty)
	if err == sql.ErrNoRows {
		return 0, false
	}

	require.NoError(t, err)

	return version, dirty
}

func TestMigrations(t *testing.T) {
	ctx := context.Background()

	pg, err := StartPostgres(ctx)
	require.NoError(t, err)

	t.Cleanup(func() { pg.Terminate(ctx) })

	version, dirty := schemaVersion(t, pg.DB)
	require.EqualValues(t, 1, version)
	require.False(t, dirty)
	require.True(t, tableExists(t, pg.DB, "accounts"))
	require.True(t, tableExists(t, pg.DB, "transactions"))

	// Already at the latest version.
	require.NoError(t, MigrateUp(pg.DB))

	require.NoError(t, MigrateDown(pg.DB))
	require.False(t, tableExists(t, pg.DB, "accounts"))
	require.False(t, tableExists(t, pg.DB, "transactions"))

	version, _ = schemaVersion(t, pg.DB)
	require.Zero(t, version)

	require.NoError(t, MigrateUp(pg.DB))
	require.True(t, tableExists(t, pg.DB, "accounts"))
	require.True(t, tableExists(t, pg.DB, "transactions"))

	version, dirty = schemaVersion(t, pg.DB)
	require.EqualValues(t, 1, version)
	require.False(t, dirty)
}
