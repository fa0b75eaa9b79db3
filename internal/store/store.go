package store

import (
	"context"

	"github.com/dmitrijs2005/groupsync/internal/common"
)

var (
	ErrUnavailable  = common.ErrUnavailable
	ErrUnauthorized = common.ErrUnauthorized
	ErrRateLimited  = common.ErrRateLimited
	ErrInvalidPath  = common.ErrInvalidPath
)

// Handler receives one node per notification. Backends may call it from any
// goroutine but never concurrently for the same subscription.
type Handler func(Node)

// Subscription is a live handle returned by On.
type Subscription interface {
	// Cancel stops delivery. It is idempotent and returns once the handle is
	// invalidated; one notification already in progress may still complete.
	Cancel()
}

// Store is the client view of the replicated tree. Every method returns
// immediately; results arrive through callbacks.
type Store interface {
	// Put writes value as JSON at path. A nil error means the backend
	// accepted the write, not that every peer has seen it.
	Put(ctx context.Context, path Path, value any) error

	// Once delivers the current node at path exactly once, or an error.
	// An absent path is delivered as a Node whose Exists is false.
	Once(ctx context.Context, path Path, fn func(Node, error))

	// Map enumerates the current children of path once, then calls done.
	Map(ctx context.Context, path Path, fn Handler, done func(error))

	// On delivers the current children of path, then every later write to
	// a child, until the subscription is cancelled.
	On(ctx context.Context, path Path, fn Handler) (Subscription, error)
}

// Pinger is implemented by backends that can check their connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
