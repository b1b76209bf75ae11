package core

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/xstater/tablex/dialect"
)

// Tx represents a database transaction.
// It implements Conn, so any builder can run inside the transaction.
type Tx struct {
	db    *DB
	sqlTx *sql.Tx
}

// Dialect returns the dialect of the owning DB.
func (tx *Tx) Dialect() dialect.Dialect {
	return tx.db.dialect
}

// PrepareContext prepares query within the transaction.
func (tx *Tx) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return tx.sqlTx.PrepareContext(ctx, query)
}

// Dispatch runs call through the owning DB's middleware chain.
func (tx *Tx) Dispatch(ctx context.Context, call *Call, next Handler) (*Result, error) {
	return tx.db.Dispatch(ctx, call, next)
}

// Exec executes a raw SQL statement within the transaction.
func (tx *Tx) Exec(ctx context.Context, query string, args ...any) (Result, error) {
	return Execute[Result](ctx, tx, Raw(query), Positional(args...))
}

// HasTable reports whether a table exists, as seen by the transaction.
func (tx *Tx) HasTable(ctx context.Context, name string) (bool, error) {
	return hasTable(ctx, tx, name)
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	if err := tx.sqlTx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}

// Rollback rolls back the transaction.
func (tx *Tx) Rollback() error {
	if err := tx.sqlTx.Rollback(); err != nil {
		return fmt.Errorf("transaction rollback failed: %w", err)
	}
	return nil
}
