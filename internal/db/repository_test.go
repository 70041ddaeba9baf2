package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestNewRepository_CreatesSchema(t *testing.T) {
	repo := newTestRepo(t)

	for _, table := range []string{"events", "kv_store", "settings", "schema_migrations"} {
		var name string
		err := repo.DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestNewRepository_OnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tickarr.db")

	repo, err := NewRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.SetSetting("k", "v"))
	require.NoError(t, repo.Close())

	// Reopening must not re-run migrations or lose data.
	repo, err = NewRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	v, ok, err := repo.GetSetting("k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	var applied int
	require.NoError(t, repo.DB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&applied))
	assert.Equal(t, 1, applied)
}

func TestSettings(t *testing.T) {
	repo := newTestRepo(t)

	_, ok, err := repo.GetSetting("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetSetting("api_key_hash", "first"))
	require.NoError(t, repo.SetSetting("api_key_hash", "second"))

	v, ok, err := repo.GetSetting("api_key_hash")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", v)
}

func TestPruneEvents(t *testing.T) {
	repo := newTestRepo(t)

	insert := func(age time.Duration) {
		_, err := repo.DB.Exec(`INSERT INTO events (aggregate_type, aggregate_id, event_type, event_data, created_at)
			VALUES ('timer', 'x', 'TimerCreated', '{}', ?)`, time.Now().UTC().Add(-age))
		require.NoError(t, err)
	}
	insert(40 * 24 * time.Hour)
	insert(31 * 24 * time.Hour)
	insert(time.Hour)

	n, err := repo.PruneEvents(0)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	n, err = repo.PruneEvents(30)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.NoError(t, repo.RunMaintenance(30))

	var remaining int
	require.NoError(t, repo.DB.QueryRow("SELECT COUNT(*) FROM events").Scan(&remaining))
	assert.Equal(t, 1, remaining)
}

func TestGetDatabaseStats(t *testing.T) {
	repo := newTestRepo(t)
	require.NoError(t, repo.SetSetting("a", "b"))

	stats, err := repo.GetDatabaseStats()
	require.NoError(t, err)

	counts := stats["table_counts"].(map[string]int64)
	assert.Equal(t, int64(1), counts["settings"])
	assert.Equal(t, int64(0), counts["events"])
	assert.Greater(t, stats["size_bytes"].(int64), int64(0))
}

func TestParseMigrationVersion(t *testing.T) {
	v, ok := parseMigrationVersion("001_initial.sql")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	_, ok = parseMigrationVersion("initial.sql")
	assert.False(t, ok)
}
