package database

import (
	"context"

	"github.com/koustreak/sqlguard/internal/errs"
)

// Transaction is a guard around one transaction on a Connection. It begins
// the transaction when created and rolls it back on Close unless Commit
// succeeded first. Always pair it with a deferred Close:
//
//	tx, err := database.NewTransaction(ctx, conn)
//	if err != nil {
//		return err
//	}
//	defer tx.Close()
//
//	conn.Execute(ctx, "INSERT INTO t VALUES (1)")
//	if !tx.Commit() {
//		return errors.New(conn.LastError())
//	}
//
// Skipping Close leaves the transaction open on the connection; that is a
// caller bug. Nested transactions are not supported: a second guard on the
// same connection fails to begin.
type Transaction struct {
	conn     *Connection
	ctx      context.Context
	resolved bool
}

// NewTransaction begins a transaction on conn. If the engine refuses, no
// guard is returned and the error carries conn's last error text.
func NewTransaction(ctx context.Context, conn *Connection) (*Transaction, error) {
	if conn == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "transaction needs a connection")
	}
	if !conn.BeginTransaction(ctx) {
		return nil, errs.Wrap(
			errs.ErrKindTransactionFailed,
			"failed to begin transaction: "+conn.LastError(),
			conn.Err(),
		)
	}
	conn.log.Debug("transaction started")
	return &Transaction{conn: conn, ctx: ctx}, nil
}

// Commit commits the transaction. It returns false without touching the
// connection if the guard is already resolved. If the engine rejects the
// commit the guard stays active, so Close still rolls back.
func (t *Transaction) Commit() bool {
	if t.resolved {
		return false
	}
	if !t.conn.CommitTransaction(t.ctx) {
		return false
	}
	t.resolved = true
	t.conn.log.Debug("transaction committed")
	return true
}

// IsActive reports whether the guard has neither committed nor rolled back.
func (t *Transaction) IsActive() bool {
	return !t.resolved
}

// Close rolls the transaction back if it is still active and resolves the
// guard. Calling it again is a no-op. The rollback runs even when the
// guard's context has been cancelled.
func (t *Transaction) Close() error {
	if t.resolved {
		return nil
	}
	t.resolved = true

	if !t.conn.RollbackTransaction(context.WithoutCancel(t.ctx)) {
		return errs.Wrap(
			errs.ErrKindQueryFailed,
			"failed to roll back transaction: "+t.conn.LastError(),
			t.conn.Err(),
		)
	}
	t.conn.log.Debug("transaction rolled back")
	return nil
}

// InTransaction runs fn inside a guard on conn. The guard is closed when fn
// returns or panics, so anything fn did not Commit is rolled back. fn's
// error is returned as is.
func InTransaction(ctx context.Context, conn *Connection, fn func(tx *Transaction) error) (err error) {
	tx, err := NewTransaction(ctx, conn)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := tx.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(tx)
}
