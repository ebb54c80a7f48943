package migrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var testMigrations = fstest.MapFS{
	"sql/001_create_ponds.up.sql":   {Data: []byte(`CREATE TABLE ponds (name TEXT PRIMARY KEY)`)},
	"sql/001_create_ponds.down.sql": {Data: []byte(`DROP TABLE ponds`)},
	"sql/002_add_area.up.sql":       {Data: []byte(`ALTER TABLE ponds ADD COLUMN area REAL`)},
	"sql/002_add_area.down.sql":     {Data: []byte(`ALTER TABLE ponds DROP COLUMN area`)},
	"sql/README.md":                 {Data: []byte("ignored")},
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestFSSource(t *testing.T) {
	migrations, err := NewFSSource(testMigrations, "sql").Migrations()
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "create ponds", migrations[0].Name)
	assert.Contains(t, migrations[0].Down, "DROP TABLE")
	assert.Equal(t, 2, migrations[1].Version)

	_, err = NewFSSource(testMigrations, "missing").Migrations()
	assert.Error(t, err)
}

func TestMigrateUpAndDown(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	m := NewMigrator(db, NewFSSource(testMigrations, "sql"), "", nil)

	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, m.Up(ctx))
	v, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	_, err = db.Exec(`INSERT INTO ponds (name, area) VALUES ('north', 1.5)`)
	require.NoError(t, err)

	// idempotent
	require.NoError(t, m.Up(ctx))

	require.NoError(t, m.To(ctx, 1))
	v, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	_, err = db.Exec(`INSERT INTO ponds (name, area) VALUES ('south', 2)`)
	assert.Error(t, err)

	require.NoError(t, m.To(ctx, 0))
	v, err = m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestMigrateFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)
	broken := fstest.MapFS{
		"sql/001_ok.up.sql":     {Data: []byte(`CREATE TABLE a (x INTEGER)`)},
		"sql/002_broken.up.sql": {Data: []byte(`CREATE TABLE nonsense (`)},
	}
	m := NewMigrator(db, NewFSSource(broken, "sql"), "versions", nil)

	assert.Error(t, m.Up(ctx))
	v, err := m.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// no down SQL
	assert.Error(t, m.To(ctx, 0))
}
