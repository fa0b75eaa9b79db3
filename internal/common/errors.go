package common

import "github.com/cockroachdb/errors"

var (
	// Store-level errors.
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("store unavailable")
	ErrRateLimited = errors.New("rate limited")

	// Auth errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidPath is returned for empty paths or segments containing '/'.
	ErrInvalidPath = errors.New("invalid path")
)
