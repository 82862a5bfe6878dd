package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpenCreatesSchema(t *testing.T) {
	ctx := context.Background()
	file := filepath.Join(t.TempDir(), "nested", "turnstile.db")

	db, err := Open(ctx, file, true)
	require.NoError(t, err)

	var tables []string
	rows, err := db.QueryContext(ctx, `select name from sqlite_master where type = 'table' and name not like 'sqlite_%' order by name`)
	require.NoError(t, err)
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables = append(tables, name)
	}
	require.NoError(t, rows.Close())
	require.Equal(t, []string{"sessions", "user_profiles", "users"}, tables)

	// running it twice is harmless
	require.NoError(t, Migrate(ctx, db))
	require.NoError(t, db.Close())
}
