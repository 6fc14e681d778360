package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrations_Embedded(t *testing.T) {
	migrations, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	assert.Equal(t, int64(1), migrations[0].Version)
	assert.Equal(t, "create_cars", migrations[0].Name)
	assert.Contains(t, migrations[0].SQL, "CREATE TABLE IF NOT EXISTS cars")
	for i := 1; i < len(migrations); i++ {
		assert.Less(t, migrations[i-1].Version, migrations[i].Version)
	}
}

func TestLoadMigrations_SortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0010_later.up.sql":  {Data: []byte("SELECT 10")},
		"sql/migrations/0002_second.up.sql": {Data: []byte("SELECT 2")},
	}
	migrations, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, int64(2), migrations[0].Version)
	assert.Equal(t, int64(10), migrations[1].Version)
}

func TestLoadMigrations_RejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/create_cars.sql": {Data: []byte("SELECT 1")},
	}
	_, err := loadMigrations(fsys)
	assert.ErrorContains(t, err, "invalid migration file name")
}

func TestLoadMigrations_RejectsDuplicateVersions(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0001_a.up.sql": {Data: []byte("SELECT 1")},
		"sql/migrations/0001_b.up.sql": {Data: []byte("SELECT 1")},
	}
	_, err := loadMigrations(fsys)
	assert.ErrorContains(t, err, "duplicate migration version 1")
}
