// Package dbtest provides migrated databases for repository tests.
//
//	func TestRepo(t *testing.T) {
//		conn := dbtest.NewSQLite(t)
//		repo := persistence.NewSubscriptionRepository(conn)
//		...
//	}
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database/sqlite" // registers the driver
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/migrations"
)

// NewSQLite opens a file-backed SQLite database in a temp dir and applies
// all migrations. The connection is closed when the test ends.
func NewSQLite(t testing.TB) database.Connection {
	t.Helper()

	ctx := context.Background()
	conn, err := database.NewConnection(ctx, database.Config{
		Driver:     database.DriverSQLite,
		SQLitePath: filepath.Join(t.TempDir(), "mosaic.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, migrations.Up(ctx, conn))
	return conn
}
