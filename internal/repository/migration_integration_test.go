//go:build integration

package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipebox/recipebox/internal/testutil"
)

// ============================================================================
// Schema
// ============================================================================

func TestIntegrationSchema_Columns(t *testing.T) {
	ctx, pool := newSchemaTestEnv(t)

	schema := map[string][]string{
		"users":              {"id", "email", "password", "name", "is_active", "is_staff", "is_superuser", "created_at"},
		"tokens":             {"id", "user_id", "key_hash", "key_prefix", "last_used_at", "created_at"},
		"tags":               {"id", "owner_id", "name", "created_at"},
		"ingredients":        {"id", "owner_id", "name", "created_at"},
		"recipes":            {"id", "owner_id", "title", "time_minutes", "price", "link", "image", "created_at", "updated_at"},
		"recipe_tags":        {"recipe_id", "tag_id"},
		"recipe_ingredients": {"recipe_id", "ingredient_id"},
	}

	for table, want := range schema {
		t.Run(table, func(t *testing.T) {
			got := columnsOf(ctx, t, pool, table)
			require.NotEmpty(t, got, "table %s missing", table)
			assert.Subset(t, got, want)
		})
	}
}

func TestIntegrationSchema_Constraints(t *testing.T) {
	ctx, pool := newSchemaTestEnv(t)
	owner := insertOwner(ctx, t, pool, "constraints@example.com")

	tests := []struct {
		name string
		sql  string
		args []any
	}{
		{"negative time_minutes", `INSERT INTO recipes (owner_id, title, time_minutes, price) VALUES ($1, 'neg', -1, 1.00)`, []any{owner}},
		{"price with four integer digits", `INSERT INTO recipes (owner_id, title, time_minutes, price) VALUES ($1, 'big', 1, 1000.00)`, []any{owner}},
		{"duplicate email", `INSERT INTO users (email, password) VALUES ('constraints@example.com', 'y')`, nil},
		{"tag without owner", `INSERT INTO tags (owner_id, name) VALUES (-1, 'orphan')`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := pool.Exec(ctx, tt.sql, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestIntegrationSchema_DeletingOwnerCascades(t *testing.T) {
	ctx, pool := newSchemaTestEnv(t)
	owner := insertOwner(ctx, t, pool, "cascade@example.com")

	var recipeID, tagID int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO recipes (owner_id, title, time_minutes, price) VALUES ($1, 'soup', 5, 2.50) RETURNING id`, owner,
	).Scan(&recipeID))
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO tags (owner_id, name) VALUES ($1, 'Dinner') RETURNING id`, owner,
	).Scan(&tagID))
	_, err := pool.Exec(ctx, `INSERT INTO recipe_tags (recipe_id, tag_id) VALUES ($1, $2)`, recipeID, tagID)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, owner)
	require.NoError(t, err)

	for _, table := range []string{"recipes", "tags", "recipe_tags"} {
		var n int
		require.NoError(t, pool.QueryRow(ctx, `SELECT count(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestIntegrationSchema_UpIsRepeatable(t *testing.T) {
	ctx, pool := newSchemaTestEnv(t)

	root, err := testutil.ProjectRoot()
	require.NoError(t, err)
	upSQL, err := os.ReadFile(filepath.Join(root, "migrations", "000001_init.up.sql"))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(upSQL))
	assert.NoError(t, err, "applying the up script twice must succeed")
}

// ============================================================================
// Helpers
// ============================================================================

func columnsOf(ctx context.Context, t *testing.T, pool *pgxpool.Pool, table string) []string {
	t.Helper()
	rows, err := pool.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
	`, table)
	require.NoError(t, err)
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		require.NoError(t, rows.Scan(&c))
		cols = append(cols, c)
	}
	require.NoError(t, rows.Err())
	return cols
}

func insertOwner(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email string) int64 {
	t.Helper()
	var id int64
	require.NoError(t, pool.QueryRow(ctx,
		`INSERT INTO users (email, password) VALUES ($1, 'x') RETURNING id`, email,
	).Scan(&id))
	return id
}

func newSchemaTestEnv(t *testing.T) (context.Context, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testutil.RequireEnv(t, "DATABASE_URL"))
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	require.NoError(t, err)
	t.Cleanup(func() { _ = unlock() })

	require.NoError(t, testutil.ResetSchema(ctx, pool))
	return ctx, pool
}
