package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/sqlguard/internal/errs"
)

func TestClassifyMySQLCode(t *testing.T) {
	tests := []struct {
		code uint16
		want errs.ErrKind
	}{
		{errAccessDenied, errs.ErrKindPermissionDenied},
		{errDBAccessDenied, errs.ErrKindPermissionDenied},
		{errUnknownDatabase, errs.ErrKindConnectionFailed},
		{errTooManyConns, errs.ErrKindConnectionFailed},
		{errDuplicateEntry, errs.ErrKindConflict},
		{errNoReferencedRow, errs.ErrKindConflict},
		{errLockWaitTimeout, errs.ErrKindTimeout},
		{errDeadlock, errs.ErrKindTimeout},
		{errNoSuchTable, errs.ErrKindNotFound},
		{1064, errs.ErrKindQueryFailed}, // syntax error
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, classifyMySQLCode(tt.code))
		})
	}
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "nothing"))

	myErr := &gomysql.MySQLError{Number: errDuplicateEntry, Message: "Duplicate entry '1' for key 'PRIMARY'"}
	got := mapError(myErr, "insert failed")
	require.NotNil(t, got)
	assert.Equal(t, errs.ErrKindConflict, got.Kind)
	assert.ErrorIs(t, got, myErr)

	got = mapError(gomysql.ErrInvalidConn, "lost")
	assert.Equal(t, errs.ErrKindConnectionFailed, got.Kind)

	got = mapError(context.DeadlineExceeded, "slow")
	assert.Equal(t, errs.ErrKindTimeout, got.Kind)

	got = mapError(errors.New("dial tcp: refused"), "open")
	assert.Equal(t, errs.ErrKindConnectionFailed, got.Kind)
}

func TestEngine(t *testing.T) {
	e := engine{}
	assert.Equal(t, "START TRANSACTION", e.BeginStatement())
}

func TestOpen_InvalidDSN(t *testing.T) {
	_, err := Open(context.Background(), "no-slash-here")
	require.Error(t, err)
	assert.True(t, errs.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
