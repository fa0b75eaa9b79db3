package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/store"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotFound         = errors.New("group not found")
	ErrPasswordRequired = errors.New("password required")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrNoActiveGroup    = errors.New("no active group")
	ErrStoreUnavailable = errors.New("store operation failed")

	// ErrSuperseded completes a pending selection or group load that a newer
	// request replaced.
	ErrSuperseded = errors.New("superseded by a newer request")
	ErrClosed     = errors.New("engine closed")
)

// ErrorKind classifies an engine error for the UI.
type ErrorKind string

const (
	KindInvalidInput     ErrorKind = "InvalidInput"
	KindNotFound         ErrorKind = "NotFound"
	KindPasswordRequired ErrorKind = "PasswordRequired"
	KindInvalidPassword  ErrorKind = "InvalidPassword"
	KindNoActiveGroup    ErrorKind = "NoActiveGroup"
	KindStoreUnavailable ErrorKind = "StoreUnavailable"
	KindSuperseded       ErrorKind = "Superseded"
	KindClosed           ErrorKind = "Closed"
	KindUnknown          ErrorKind = "Unknown"
)

// KindOf maps err to its kind; nil maps to "".
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput), errors.Is(err, store.ErrInvalidPath):
		return KindInvalidInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPasswordRequired):
		return KindPasswordRequired
	case errors.Is(err, ErrInvalidPassword):
		return KindInvalidPassword
	case errors.Is(err, ErrNoActiveGroup):
		return KindNoActiveGroup
	case errors.Is(err, ErrSuperseded):
		return KindSuperseded
	case errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		return KindClosed
	case errors.Is(err, ErrStoreUnavailable),
		errors.Is(err, store.ErrUnavailable),
		errors.Is(err, store.ErrRateLimited),
		errors.Is(err, store.ErrUnauthorized),
		errors.Is(err, context.DeadlineExceeded):
		return KindStoreUnavailable
	default:
		return KindUnknown
	}
}

// unavailable marks a store failure as ErrStoreUnavailable while keeping
// the original cause matchable.
func unavailable(err error, op string) error {
	return errors.Mark(errors.Wrap(err, op), ErrStoreUnavailable)
}

// storeKind is KindOf for errors that came out of a store call.
func storeKind(err error) ErrorKind {
	if k := KindOf(err); k != KindUnknown {
		return k
	}
	return KindStoreUnavailable
}
