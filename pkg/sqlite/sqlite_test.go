package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:", 5*time.Second)
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping(context.Background()))
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "test.db")

	db, err := Open(path, 5*time.Second)
	require.NoError(t, err)
	defer db.Close()

	// WAL journal mode must be active on a file-backed database
	var mode string
	err = db.Handle.QueryRow("PRAGMA journal_mode").Scan(&mode)
	require.NoError(t, err)
	assert.Equal(t, "wal", mode)
}

func TestHealthCheck(t *testing.T) {
	db, err := Open(":memory:", 5*time.Second)
	require.NoError(t, err)
	defer db.Close()

	status, err := db.HealthCheck(context.Background())
	require.NoError(t, err)

	assert.True(t, status.Healthy)
	assert.Equal(t, ":memory:", status.Path)
	assert.GreaterOrEqual(t, status.Stats.OpenConnections, 0)
}

func TestCloseIsIdempotentOnNilHandle(t *testing.T) {
	db := &DB{}
	assert.NoError(t, db.Close())
}
