package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque transaction handle. Its concrete type is infra-defined
// (pgx.Tx for Postgres); nil means "use the pool".
type Tx interface{}

var NoTX Tx

// TransactionManager runs fn inside a database transaction and hands the
// transaction handle to fn. Repositories receiving that handle take row locks
// (SELECT ... FOR UPDATE) where it matters.
//
// Usage:
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
//		o, err := orders.FindByID(ctx, tx, id)
//		...
//		return err
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
