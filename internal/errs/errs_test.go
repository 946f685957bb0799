package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edgard/smartblinds/internal/errs"
)

func TestCode(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: errs.CodeUnknown},
		{name: "plain error", err: cause, want: errs.CodeUnknown},
		{name: "store query", err: errs.NewStoreQueryError("list failed", cause), want: errs.CodeStoreQuery},
		{name: "wrapped scheduling", err: fmt.Errorf("arm: %w", errs.NewSchedulingError("engine", cause)), want: errs.CodeScheduling},
		{
			name: "outermost wins",
			err:  errs.NewStoreConnectError("load", errs.NewStoreQueryError("corrupt row", cause)),
			want: errs.CodeStoreConnect,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, errs.Code(tt.err))
		})
	}
}

func TestHasCodeWalksChain(t *testing.T) {
	t.Parallel()

	inner := errs.NewStoreQueryError("corrupt row", nil)
	err := errs.NewStoreConnectError("load", inner)

	assert.True(t, errs.HasCode(err, errs.CodeStoreConnect))
	assert.True(t, errs.IsStoreQuery(err))
	assert.False(t, errs.IsScheduling(err))
	assert.False(t, errs.HasCode(nil, errs.CodeStoreQuery))
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "no timer", errs.NewInconsistencyError("no timer", nil).Error())
	assert.Equal(t, "insert: boom", errs.NewStoreQueryError("insert", errors.New("boom")).Error())

	conflict := errs.NewStoreQueryError("insert", fmt.Errorf("%w: unique", errs.ErrConflict))
	assert.ErrorIs(t, conflict, errs.ErrConflict)
}
