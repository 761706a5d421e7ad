package clientdata

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/sentinel-dashboard/internal/database"
	testingpkg "github.com/aristath/sentinel-dashboard/internal/testing"
)

func setupTestRepo(t *testing.T) (*Repository, *database.DB) {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "client_data")
	t.Cleanup(cleanup)
	return NewRepository(db.Conn()), db
}

func TestRepository_SetGet(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.Set("sentinel_access_token", "abc"))

	value, ok, err := repo.Get("sentinel_access_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "abc", value)
}

func TestRepository_GetMissing(t *testing.T) {
	repo, _ := setupTestRepo(t)

	value, ok, err := repo.Get("missing")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)
}

func TestRepository_SetUpserts(t *testing.T) {
	repo, db := setupTestRepo(t)

	require.NoError(t, repo.Set("k", "v1"))
	require.NoError(t, repo.Set("k", "v2"))

	var count int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM credentials WHERE key = ?", "k").Scan(&count))
	assert.Equal(t, 1, count)

	value, _, err := repo.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)
}

func TestRepository_Remove(t *testing.T) {
	repo, _ := setupTestRepo(t)

	require.NoError(t, repo.Set("k", "v"))
	require.NoError(t, repo.Remove("k"))
	require.NoError(t, repo.Remove("k"))

	_, ok, err := repo.Get("k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_UpdatedAtAndKeys(t *testing.T) {
	repo, _ := setupTestRepo(t)
	fixed := time.Date(2026, 1, 16, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	require.NoError(t, repo.Set("b", "2"))
	require.NoError(t, repo.Set("a", "1"))

	ts, ok, err := repo.UpdatedAt("a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, fixed.Unix(), ts.Unix())

	keys, err := repo.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestRepository_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client_data.db")

	open := func() (*Repository, *database.DB) {
		db, err := database.New(database.Config{Path: path, Name: "client_data"})
		require.NoError(t, err)
		require.NoError(t, db.Migrate())
		return NewRepository(db.Conn()), db
	}

	repo, db := open()
	require.NoError(t, repo.Set("sentinel_refresh_token", "r1"))
	require.NoError(t, db.Close())

	repo, db = open()
	defer db.Close()

	value, ok, err := repo.Get("sentinel_refresh_token")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "r1", value)
}
