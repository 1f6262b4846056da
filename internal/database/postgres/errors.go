package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/sqlguard/internal/errs"
)

// PostgreSQL SQLSTATE codes handled individually.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrInsufficientPrivilege = "42501"
	pgErrSerializationFailure  = "40001"
	pgErrDeadlockDetected      = "40P01"
	pgErrQueryCanceled         = "57014"
	pgErrUndefinedTable        = "42P01"
)

// mapError translates pgx / pgconn native errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) {
		return errs.Wrap(e.Kind, msg, err)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return errs.Wrap(classifySQLState(pgErr.Code), msg, err)
	}

	// connection-level errors (TLS, network, auth handshake)
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

func classifySQLState(code string) errs.ErrKind {
	switch code {
	case pgErrInsufficientPrivilege:
		return errs.ErrKindPermissionDenied
	case pgErrSerializationFailure, pgErrDeadlockDetected, pgErrQueryCanceled:
		return errs.ErrKindTimeout
	case pgErrUndefinedTable:
		return errs.ErrKindNotFound
	}
	if len(code) < 2 {
		return errs.ErrKindUnknown
	}
	switch code[:2] {
	case "08", "28", "3D": // connection, invalid authorization, invalid catalog
		return errs.ErrKindConnectionFailed
	case "23": // integrity constraint violation
		return errs.ErrKindConflict
	case "22": // data exception
		return errs.ErrKindInvalidInput
	case "25": // invalid transaction state
		return errs.ErrKindTransactionFailed
	default:
		return errs.ErrKindQueryFailed
	}
}
