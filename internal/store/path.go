package store

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dmitrijs2005/groupsync/internal/common"
)

// Path is an ordered list of segments, e.g. groups/<gid>/messages/<mid>.
type Path []string

// NewPath builds a Path from segments.
func NewPath(segments ...string) Path {
	return Path(segments)
}

// Validate rejects empty paths and empty segments.
func (p Path) Validate() error {
	if len(p) == 0 {
		return errors.Wrap(common.ErrInvalidPath, "empty path")
	}
	for i, seg := range p {
		if seg == "" {
			return errors.Wrapf(common.ErrInvalidPath, "empty segment at %d", i)
		}
		if strings.Contains(seg, "/") {
			return errors.Wrapf(common.ErrInvalidPath, "segment %q contains '/'", seg)
		}
	}
	return nil
}

func (p Path) String() string {
	return strings.Join(p, "/")
}

// Child returns a new path with segments appended. p is not modified.
func (p Path) Child(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Parent returns p without its last segment; the parent of a one-segment
// path is the empty root.
func (p Path) Parent() Path {
	if len(p) == 0 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Key is the last segment.
func (p Path) Key() string {
	if len(p) == 0 {
		return ""
	}
	return p[len(p)-1]
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if p[i] != o[i] {
			return false
		}
	}
	return true
}
