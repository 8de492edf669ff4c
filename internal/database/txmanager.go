package database

import (
	"context"
	"fmt"
)

// RunInTx executes fn within a database transaction carried on the context;
// repositories created from the same DB pick it up automatically. Nested
// RunInTx calls are not supported.
//
// On success: commits. On error from fn: rolls back and returns the error.
// On panic from fn: rolls back and re-panics.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	txCtx := withTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %w (original error: %v)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}
