package tenant

import (
	"context"
	"database/sql"
	"errors"

	"taskhub/internal/database"
)

// Execer runs a statement. database.Service and TxExecer satisfy it.
type Execer interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type txExecer struct {
	tx *sql.Tx
}

// TxExecer lets ScopedExec run inside a transaction.
func TxExecer(tx *sql.Tx) Execer {
	return txExecer{tx: tx}
}

func (e txExecer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return e.tx.ExecContext(ctx, query, args...)
}

// ScopedExec runs an UPDATE or DELETE whose WHERE clause pins both the row id
// and the caller's tenant id. Zero affected rows means the row is missing or
// belongs to another tenant, and both are reported as ErrNotFound.
func ScopedExec(ctx context.Context, db Execer, op, query string, args ...any) error {
	res, err := db.Exec(ctx, query, args...)
	if err != nil {
		return database.StorageErr(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return database.StorageErr(op, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ScopedRow maps the result of scanning a tenant-scoped single-row query.
//
//	err := tenant.ScopedRow("get todo", row.Scan(&t.ID, ...))
func ScopedRow(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	default:
		return database.StorageErr(op, err)
	}
}
