//go:build cgo

package sqlite3

import (
	"context"
	"errors"

	"github.com/koustreak/sqlguard/internal/errs"
	gosqlite3 "github.com/mattn/go-sqlite3"
)

// mapError translates mattn/go-sqlite3 errors into *errs.Error.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var sqliteErr gosqlite3.Error
	if errors.As(err, &sqliteErr) {
		return errs.Wrap(classifyCode(sqliteErr.Code), msg, err)
	}

	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}

func classifyCode(code gosqlite3.ErrNo) errs.ErrKind {
	switch code {
	case gosqlite3.ErrConstraint:
		return errs.ErrKindConflict
	case gosqlite3.ErrBusy, gosqlite3.ErrLocked:
		return errs.ErrKindTimeout
	case gosqlite3.ErrCantOpen, gosqlite3.ErrNotADB, gosqlite3.ErrCorrupt:
		return errs.ErrKindConnectionFailed
	case gosqlite3.ErrPerm, gosqlite3.ErrAuth, gosqlite3.ErrReadonly:
		return errs.ErrKindPermissionDenied
	case gosqlite3.ErrNotFound:
		return errs.ErrKindNotFound
	case gosqlite3.ErrMisuse, gosqlite3.ErrRange:
		return errs.ErrKindInvalidInput
	default:
		return errs.ErrKindQueryFailed
	}
}
