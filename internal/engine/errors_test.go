package engine

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/store"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"invalid input", errors.Wrap(ErrInvalidInput, "empty name"), KindInvalidInput},
		{"invalid path", errors.Wrap(store.ErrInvalidPath, "x"), KindInvalidInput},
		{"not found", ErrNotFound, KindNotFound},
		{"password required", ErrPasswordRequired, KindPasswordRequired},
		{"invalid password", ErrInvalidPassword, KindInvalidPassword},
		{"no active group", ErrNoActiveGroup, KindNoActiveGroup},
		{"store marked", unavailable(errors.New("boom"), "put"), KindStoreUnavailable},
		{"store sentinel", errors.Wrap(store.ErrUnavailable, "x"), KindStoreUnavailable},
		{"rate limited", store.ErrRateLimited, KindStoreUnavailable},
		{"deadline", context.DeadlineExceeded, KindStoreUnavailable},
		{"superseded", ErrSuperseded, KindSuperseded},
		{"closed", ErrClosed, KindClosed},
		{"other", errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := errors.Wrap(store.ErrRateLimited, "relay")
	err := unavailable(cause, "put message")

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, store.ErrRateLimited))
	assert.Contains(t, err.Error(), "put message")
}
