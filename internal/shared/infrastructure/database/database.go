// Package database hides the PostgreSQL and SQLite drivers behind one
// small executor interface. Repositories write '?' placeholders, pass them
// through Rebind and pick the executor for the current transaction with
// ExecutorFromContext.
package database

import (
	"context"
	"database/sql"
	"strings"
)

// Driver names a database backend.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
)

func (d Driver) String() string { return string(d) }

// IsValid reports whether d is a backend this package can open.
func (d Driver) IsValid() bool {
	return d == DriverPostgres || d == DriverSQLite
}

var (
	postgresPrefixes = []string{"postgres://", "postgresql://"}
	sqlitePrefixes   = []string{"sqlite://", "file:"}
	sqliteSuffixes   = []string{".db", ".sqlite", ".sqlite3"}
)

// DetectDriver guesses the backend from a connection URL. An empty URL
// means local SQLite; anything unrecognised is treated as PostgreSQL.
func DetectDriver(url string) Driver {
	if url == "" {
		return DriverSQLite
	}
	for _, p := range postgresPrefixes {
		if strings.HasPrefix(url, p) {
			return DriverPostgres
		}
	}
	for _, p := range sqlitePrefixes {
		if strings.HasPrefix(url, p) {
			return DriverSQLite
		}
	}
	for _, s := range sqliteSuffixes {
		if strings.HasSuffix(url, s) {
			return DriverSQLite
		}
	}
	return DriverPostgres
}

// Row is satisfied by pgx.Row and *sql.Row.
type Row interface {
	Scan(dest ...any) error
}

// Rows is the subset of pgx.Rows and *sql.Rows the repositories use.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Close() error
	Err() error
}

// Result reports the effect of an Exec.
type Result interface {
	RowsAffected() (int64, error)
	LastInsertId() (int64, error)
}

// Executor runs statements on a connection or inside a transaction.
type Executor interface {
	Exec(ctx context.Context, query string, args ...any) (Result, error)
	QueryRow(ctx context.Context, query string, args ...any) Row
	Query(ctx context.Context, query string, args ...any) (Rows, error)
}

// Transaction is an Executor that must be committed or rolled back.
type Transaction interface {
	Executor
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Connection is an open database.
type Connection interface {
	Executor
	BeginTx(ctx context.Context) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
	Driver() Driver
	// StdlibDB exposes a database/sql handle for goose.
	StdlibDB() *sql.DB
}
