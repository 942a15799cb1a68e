package database

import (
	"context"
	"strconv"
	"strings"
)

// Rebind rewrites '?' placeholders into the driver's native form.
// Repositories write their SQL once with '?' and call Rebind before executing.
// Question marks inside single-quoted literals are left alone.
func Rebind(driver Driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inLiteral := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inLiteral = !inLiteral
			b.WriteByte(c)
		case c == '?' && !inLiteral:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Placeholders returns n comma separated '?' markers for IN clauses.
func Placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// LockKey serializes writers that share key for the rest of the current
// transaction. On PostgreSQL this takes a transaction-scoped advisory lock.
// SQLite connections are limited to one writer, so the surrounding
// transaction already provides the guarantee and LockKey is a no-op.
func LockKey(ctx context.Context, conn Connection, key string) error {
	if conn.Driver() != DriverPostgres {
		return nil
	}
	exec := ExecutorFromContext(ctx, conn)
	_, err := exec.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key)
	return err
}

// KeyLocker adapts LockKey to application.Locker.
type KeyLocker struct {
	conn Connection
}

// NewKeyLocker creates a locker bound to conn.
func NewKeyLocker(conn Connection) *KeyLocker {
	return &KeyLocker{conn: conn}
}

// Lock takes the transaction-scoped lock for key.
func (l *KeyLocker) Lock(ctx context.Context, key string) error {
	return LockKey(ctx, l.conn, key)
}
