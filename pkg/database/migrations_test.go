package database

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMemoryDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(Config{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrator_RunMigrations(t *testing.T) {
	db := newMemoryDB(t)

	fsys := fstest.MapFS{
		"002_add_column.sql": {Data: []byte(`ALTER TABLE things ADD COLUMN label TEXT NOT NULL DEFAULT '';`)},
		"001_create_things.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
	}

	migrator := NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(fsys))

	// applied in version order regardless of walk order
	_, err := db.Exec(`INSERT INTO things (label) VALUES ('ok')`)
	require.NoError(t, err)

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 2, applied)
}

func TestMigrator_RunMigrations_Idempotent(t *testing.T) {
	db := newMemoryDB(t)

	fsys := fstest.MapFS{
		"001_create_things.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
	}

	migrator := NewMigrator(db, zap.NewNop())
	require.NoError(t, migrator.RunMigrations(fsys))
	require.NoError(t, migrator.RunMigrations(fsys))

	var applied int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestMigrator_RunMigrations_BadFilename(t *testing.T) {
	db := newMemoryDB(t)

	fsys := fstest.MapFS{
		"notaversion.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
	}

	migrator := NewMigrator(db, zap.NewNop())
	assert.Error(t, migrator.RunMigrations(fsys))
}
