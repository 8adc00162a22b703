package database

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	src := `-- leading comment
CREATE TABLE a (id INT);

  -- another
CREATE TABLE b (id INT);
`
	got := splitStatements(src)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, got)
}

func TestEmbeddedMigrationsParse(t *testing.T) {
	entries, err := migrationFiles.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		raw, err := migrationFiles.ReadFile("migrations/" + e.Name())
		require.NoError(t, err)
		assert.NotEmpty(t, splitStatements(string(raw)), e.Name())
	}
}

func TestMigrate_IsIdempotent(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set")
	}
	db, err := OpenDSN(dsn)
	if err != nil {
		t.Skipf("mysql not reachable: %v", err)
	}
	defer db.Close()
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, db))
	var count int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.GreaterOrEqual(t, count, 2)

	require.NoError(t, Migrate(ctx, db))
	var again int
	require.NoError(t, db.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&again))
	assert.Equal(t, count, again)
}
