package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jwlim/sectorpulse/pkg/config"
)

// DB wraps the sql.DB handle and provides additional functionality
// SSOT: the database connection is created in this package only
type DB struct {
	Handle *sql.DB
	path   string
}

// New opens the SQLite database file from config.
// The database is opened in WAL mode so that concurrent readers from other
// processes do not block the single writer, and with a busy timeout so that
// short write contention is waited out instead of failing.
func New(cfg *config.Config) (*DB, error) {
	return Open(cfg.Database.Path, cfg.Database.BusyTimeout)
}

// Open opens a database at an explicit path. Use ":memory:" for tests.
func Open(path string, busyTimeout time.Duration) (*DB, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		path, busyTimeout.Milliseconds())

	handle, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; more connections only add lock churn.
	handle.SetMaxOpenConns(1)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := handle.PingContext(ctx); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Handle: handle, path: path}, nil
}

// Close closes the database handle
func (db *DB) Close() error {
	if db.Handle != nil {
		return db.Handle.Close()
	}
	return nil
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Handle.PingContext(ctx)
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// HealthCheck returns detailed health information about the database
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Healthy:   false,
		Timestamp: time.Now(),
		Path:      db.path,
	}

	start := time.Now()
	if err := db.Handle.PingContext(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	stats := db.Handle.Stats()
	status.Stats = PoolStats{
		OpenConnections: stats.OpenConnections,
		InUse:           stats.InUse,
		Idle:            stats.Idle,
		WaitCount:       stats.WaitCount,
		WaitDuration:    stats.WaitDuration,
	}

	status.Healthy = true
	return status, nil
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	Path         string        `json:"path"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// PoolStats represents connection pool statistics
type PoolStats struct {
	OpenConnections int           `json:"open_connections"`
	InUse           int           `json:"in_use"`
	Idle            int           `json:"idle"`
	WaitCount       int64         `json:"wait_count"`
	WaitDuration    time.Duration `json:"wait_duration"`
}
