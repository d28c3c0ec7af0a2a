package database

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSorted(t *testing.T) {
	fsys := fstest.MapFS{
		"m/010_late.sql":   {Data: []byte("SELECT 1;")},
		"m/002_next.sql":   {Data: []byte("SELECT 1;")},
		"m/001_schema.sql": {Data: []byte("SELECT 1;")},
		"m/README.md":      {Data: []byte("notes")},
		"m/old/003.sql":    {Data: []byte("SELECT 1;")},
	}
	names, err := migrationNames(fsys, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_schema.sql", "002_next.sql", "010_late.sql"}, names)
}

func TestEmbeddedSchemaCoversTables(t *testing.T) {
	names, err := migrationNames(migrationsFS, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, names)
	assert.Equal(t, "001_schema.sql", names[0])

	raw, err := migrationsFS.ReadFile("migrations/001_schema.sql")
	require.NoError(t, err)
	schema := string(raw)
	for _, table := range []string{"users", "organizations", "brands", "events", "matches", "threads", "messages"} {
		assert.True(t, strings.Contains(schema, "CREATE TABLE IF NOT EXISTS "+table+" ("), table)
	}
	assert.Contains(t, schema, "UNIQUE (brand_id, event_id)")
	assert.Contains(t, schema, "UNIQUE (brand_id, org_id, event_id)")
}
