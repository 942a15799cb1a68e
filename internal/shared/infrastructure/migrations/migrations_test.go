package migrations_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/dbtest"
	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/migrations"
)

func TestUp_CreatesSchema(t *testing.T) {
	ctx := context.Background()
	conn := dbtest.NewSQLite(t)

	for _, table := range []string{
		"subscriptions", "payment_records", "billing_customers",
		"businesses", "reviews",
		"activity_events", "search_events", "daily_business_metrics", "platform_metrics",
		"outbox",
	} {
		var name string
		err := conn.QueryRow(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		require.NoError(t, err, table)
	}

	version, err := migrations.Version(ctx, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(4), version)
}

func TestUp_Idempotent(t *testing.T) {
	conn := dbtest.NewSQLite(t)
	assert.NoError(t, migrations.Up(context.Background(), conn))
}

func TestFiles_SameSequenceForBothDrivers(t *testing.T) {
	pg, err := migrations.Files(database.DriverPostgres)
	require.NoError(t, err)
	lite, err := migrations.Files(database.DriverSQLite)
	require.NoError(t, err)

	require.Len(t, pg, 4)
	require.Len(t, lite, len(pg))
	for i := range pg {
		assert.Equal(t, filepath.Base(pg[i]), filepath.Base(lite[i]))
	}

	_, err = migrations.Files(database.Driver("mysql"))
	assert.Error(t, err)
}
