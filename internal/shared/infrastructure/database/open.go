package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is detected from URL when empty or "auto".
	Driver Driver
	// URL is the PostgreSQL DSN.
	URL string
	// SQLitePath defaults to ~/.mosaic/mosaic.db.
	SQLitePath string
	// MaxConns caps the PostgreSQL pool.
	MaxConns int
}

// Opener opens a connection for one backend.
type Opener func(ctx context.Context, cfg Config) (Connection, error)

var (
	openersMu sync.RWMutex
	openers   = map[Driver]Opener{}
)

// Register installs the opener of a backend. The postgres and sqlite
// subpackages call it from init, so importing them enables the backend.
func Register(driver Driver, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	openers[driver] = open
}

// NewConnection opens the backend cfg selects.
func NewConnection(ctx context.Context, cfg Config) (Connection, error) {
	driver := cfg.Driver
	if driver == "" || driver == "auto" {
		driver = DetectDriver(cfg.URL)
	}
	if !driver.IsValid() {
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}

	openersMu.RLock()
	open := openers[driver]
	openersMu.RUnlock()
	if open == nil {
		return nil, fmt.Errorf("%s driver not registered", driver)
	}
	return open(ctx, cfg)
}

// DefaultSQLitePath is ~/.mosaic/mosaic.db, or ./.mosaic/mosaic.db when
// the home directory is unknown.
func DefaultSQLitePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".mosaic", "mosaic.db")
}

// EnsureDirectory creates the parent directory of path.
func EnsureDirectory(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o750)
}
