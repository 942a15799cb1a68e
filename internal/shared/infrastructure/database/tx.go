package database

import (
	"context"
	"errors"
)

// ErrNoTransaction is returned by Commit and Rollback when Begin was not
// called on the context.
var ErrNoTransaction = errors.New("no transaction in context")

type txKey struct{}

// txScope is what Begin stores in the context. Only the outermost Begin
// owns the transaction; nested units join it and leave the commit to it.
type txScope struct {
	tx    Transaction
	owner bool
}

func scopeFrom(ctx context.Context) (txScope, bool) {
	scope, ok := ctx.Value(txKey{}).(txScope)
	return scope, ok && scope.tx != nil
}

// ExecutorFromContext returns the transaction begun on ctx, or conn when
// there is none.
func ExecutorFromContext(ctx context.Context, conn Connection) Executor {
	if scope, ok := scopeFrom(ctx); ok {
		return scope.tx
	}
	return conn
}

// UnitOfWork implements application.UnitOfWork on top of a Connection.
type UnitOfWork struct {
	conn Connection
}

func NewUnitOfWork(conn Connection) *UnitOfWork {
	return &UnitOfWork{conn: conn}
}

// Begin opens a transaction, or joins the one already on ctx.
func (u *UnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	if scope, ok := scopeFrom(ctx); ok {
		return context.WithValue(ctx, txKey{}, txScope{tx: scope.tx}), nil
	}
	tx, err := u.conn.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	return context.WithValue(ctx, txKey{}, txScope{tx: tx, owner: true}), nil
}

func (u *UnitOfWork) Commit(ctx context.Context) error {
	return finish(ctx, Transaction.Commit)
}

func (u *UnitOfWork) Rollback(ctx context.Context) error {
	return finish(ctx, Transaction.Rollback)
}

func finish(ctx context.Context, end func(Transaction, context.Context) error) error {
	scope, ok := scopeFrom(ctx)
	if !ok {
		return ErrNoTransaction
	}
	if !scope.owner {
		return nil
	}
	return end(scope.tx, ctx)
}
