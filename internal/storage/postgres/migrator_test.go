package postgres

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMigrationsPairsAndSorts(t *testing.T) {
	fsys := fstest.MapFS{
		"sql/migrations/0002_add_index.up.sql":   {Data: []byte("CREATE INDEX idx ON t (c);")},
		"sql/migrations/0002_add_index.down.sql": {Data: []byte("DROP INDEX idx;")},
		"sql/migrations/0001_init.up.sql":        {Data: []byte("CREATE TABLE t (c INT);")},
		"sql/migrations/0001_init.down.sql":      {Data: []byte("DROP TABLE t;")},
	}

	set, err := loadMigrations(fsys)
	require.NoError(t, err)
	require.Len(t, set.ordered, 2)

	assert.Equal(t, int64(1), set.ordered[0].Version)
	assert.Equal(t, "init", set.ordered[0].Name)
	assert.Equal(t, int64(2), set.ordered[1].Version)
	assert.NotEmpty(t, set.ordered[1].UpSQL)
	assert.NotEmpty(t, set.ordered[1].DownSQL)

	m, ok := set.byVersion[2]
	require.True(t, ok)
	assert.Equal(t, "add_index", m.Name)
}

func TestLoadMigrationsRejectsBrokenSets(t *testing.T) {
	tests := []struct {
		name string
		fsys fstest.MapFS
	}{
		{
			name: "missing down pair",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql": {Data: []byte("CREATE TABLE t (c INT);")},
			},
		},
		{
			name: "invalid file name",
			fsys: fstest.MapFS{
				"sql/migrations/init.sql": {Data: []byte("CREATE TABLE t (c INT);")},
			},
		},
		{
			name: "empty migration body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":   {Data: []byte("   ")},
				"sql/migrations/0001_init.down.sql": {Data: []byte("DROP TABLE t;")},
			},
		},
		{
			name: "conflicting names for one version",
			fsys: fstest.MapFS{
				"sql/migrations/0001_init.up.sql":    {Data: []byte("CREATE TABLE t (c INT);")},
				"sql/migrations/0001_other.down.sql": {Data: []byte("DROP TABLE t;")},
			},
		},
		{
			name: "no migrations",
			fsys: fstest.MapFS{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadMigrations(tt.fsys)
			assert.Error(t, err)
		})
	}
}

func TestParseMigrationName(t *testing.T) {
	tests := []struct {
		base        string
		wantVersion int64
		wantName    string
		wantUp      bool
		wantErr     bool
	}{
		{base: "0001_init.up.sql", wantVersion: 1, wantName: "init", wantUp: true},
		{base: "0042_add_stock.down.sql", wantVersion: 42, wantName: "add_stock"},
		{base: "0001_init.sql", wantErr: true},
		{base: "init.up.sql", wantErr: true},
		{base: "0001_.up.sql", wantErr: true},
		{base: "0001_init.up.txt", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.base, func(t *testing.T) {
			version, name, up, err := parseMigrationName(tt.base)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVersion, version)
			assert.Equal(t, tt.wantName, name)
			assert.Equal(t, tt.wantUp, up)
		})
	}
}

func TestEmbeddedMigrationsAreWellFormed(t *testing.T) {
	set, err := loadMigrations(migrationsFS)
	require.NoError(t, err)
	require.NotEmpty(t, set.ordered)

	for _, m := range set.ordered {
		assert.NotEmptyf(t, m.UpSQL, "migration %d_%s has empty up SQL", m.Version, m.Name)
		assert.NotEmptyf(t, m.DownSQL, "migration %d_%s has empty down SQL", m.Version, m.Name)
	}
}
