package application

import "context"

// UnitOfWork provides transactional support for aggregating multiple operations.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork executes fn within a unit of work. The transaction is
// rolled back when fn fails or panics; the panic is re-raised afterwards.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) (err error) {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = uow.Rollback(txCtx)
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// NopUnitOfWork runs the function without a transaction. Used by in-memory
// repositories and tests.
type NopUnitOfWork struct{}

func (NopUnitOfWork) Begin(ctx context.Context) (context.Context, error) { return ctx, nil }
func (NopUnitOfWork) Commit(context.Context) error                      { return nil }
func (NopUnitOfWork) Rollback(context.Context) error                    { return nil }

// Locker serializes writers that share a key for the rest of the unit of
// work. It must be called inside WithUnitOfWork.
type Locker interface {
	Lock(ctx context.Context, key string) error
}

// NopLocker never blocks.
type NopLocker struct{}

func (NopLocker) Lock(context.Context, string) error { return nil }
