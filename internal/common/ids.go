package common

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a random identifier safe to use as a single path segment.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
