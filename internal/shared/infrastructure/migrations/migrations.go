// Package migrations applies the embedded schema with goose.
package migrations

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

//go:embed postgres/*.sql sqlite/*.sql
var embedded embed.FS

// goose keeps its base FS and dialect in package globals.
var gooseMu sync.Mutex

// Up applies every pending migration for the connection's driver.
func Up(ctx context.Context, conn database.Connection) error {
	dialect, dir, err := target(conn.Driver())
	if err != nil {
		return err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedded)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, conn.StdlibDB(), dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", conn.Driver(), err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, conn database.Connection) (int64, error) {
	dialect, _, err := target(conn.Driver())
	if err != nil {
		return 0, err
	}

	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(dialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, conn.StdlibDB())
}

// Files lists the embedded migration files for a driver, in order.
func Files(driver database.Driver) ([]string, error) {
	_, dir, err := target(driver)
	if err != nil {
		return nil, err
	}
	return fs.Glob(embedded, dir+"/*.sql")
}

func target(driver database.Driver) (dialect, dir string, err error) {
	switch driver {
	case database.DriverPostgres:
		return "postgres", "postgres", nil
	case database.DriverSQLite:
		return "sqlite3", "sqlite", nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", driver)
	}
}
