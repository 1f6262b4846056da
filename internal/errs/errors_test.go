package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("disk I/O error")

	assert.Equal(t, "[connection_failed] failed to open database", New(ErrKindConnectionFailed, "failed to open database").Error())
	assert.Equal(t, "[query_failed] vacuum failed: disk I/O error", Wrap(ErrKindQueryFailed, "vacuum failed", cause).Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("no such table: users")
	err := fmt.Errorf("listing: %w", Wrap(ErrKindQueryFailed, "query failed", cause))

	assert.ErrorIs(t, err, cause)
	assert.True(t, IsQueryFailed(err))
	assert.Equal(t, ErrKindQueryFailed, KindOf(err))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind ErrKind
		pred func(error) bool
	}{
		{ErrKindNotFound, IsNotFound},
		{ErrKindTimeout, IsTimeout},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindPermissionDenied, IsPermissionDenied},
		{ErrKindConflict, IsConflict},
		{ErrKindTransactionFailed, IsTransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.True(t, tt.pred(New(tt.kind, "x")))
			assert.False(t, tt.pred(New(ErrKindUnknown, "x")))
			assert.False(t, tt.pred(errors.New("plain")))
		})
	}
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.Equal(t, "unknown", ErrKind(99).String())
}
