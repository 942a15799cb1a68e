// Package sqlite registers the pure Go SQLite driver used for local mode
// and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/mosaic/internal/shared/infrastructure/database"
)

func init() {
	database.Register(database.DriverSQLite, NewConnection)
}

// pragmas are appended to every DSN. _time_format=sqlite stores times as
// "2006-01-02 15:04:05.999999999-07:00", which sorts lexically for UTC
// values, so range filters on TEXT columns work.
var pragmas = []string{
	"_pragma=journal_mode(WAL)",
	"_pragma=foreign_keys(1)",
	"_pragma=busy_timeout(5000)",
	"_pragma=synchronous(NORMAL)",
	"_time_format=sqlite",
}

// querier is implemented by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type executor struct {
	q querier
}

func (e executor) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	res, err := e.q.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e executor) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return e.q.QueryRowContext(ctx, query, args...)
}

func (e executor) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := e.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Connection is a single-connection database/sql pool. Transactions are
// serialized, which the subscription duplicate check and review
// uniqueness rely on.
type Connection struct {
	executor
	db *sql.DB
}

// NewConnection opens cfg.SQLitePath, creating its directory.
func NewConnection(ctx context.Context, cfg database.Config) (database.Connection, error) {
	path := cfg.SQLitePath
	if path == "" {
		path = database.DefaultSQLitePath()
	}
	if err := database.EnsureDirectory(path); err != nil {
		return nil, fmt.Errorf("sqlite: create directory: %w", err)
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err := sql.Open("sqlite", path+sep+strings.Join(pragmas, "&"))
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping: %w", err)
	}
	return &Connection{executor: executor{q: db}, db: db}, nil
}

func (c *Connection) StdlibDB() *sql.DB { return c.db }

func (c *Connection) Driver() database.Driver { return database.DriverSQLite }

func (c *Connection) Ping(ctx context.Context) error { return c.db.PingContext(ctx) }

func (c *Connection) Close() error { return c.db.Close() }

func (c *Connection) BeginTx(ctx context.Context) (database.Transaction, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Transaction{executor: executor{q: tx}, tx: tx}, nil
}

// Transaction is a database/sql transaction.
type Transaction struct {
	executor
	tx *sql.Tx
}

func (t *Transaction) Commit(context.Context) error   { return t.tx.Commit() }
func (t *Transaction) Rollback(context.Context) error { return t.tx.Rollback() }
