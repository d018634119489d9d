// Package pathutil validates manifest path segments and mints the unique
// ids used for nodes, components, composites, and copy-on-write assets.
package pathutil

import (
	"strings"

	"github.com/google/uuid"

	"github.com/adobe/dcxsync/dcxerrors"
)

const (
	minSegmentLength = 1
	maxSegmentLength = 255
)

// forbiddenChars are disallowed anywhere in a path segment, per spec.
const forbiddenChars = `"*/:<>?\`

// ValidateSegment enforces the path-segment invariants: 1-255 characters,
// must not end with '.', must not contain any of the forbidden characters
// or a C0 control / DEL byte.
func ValidateSegment(segment string) error {
	n := len(segment)
	if n < minSegmentLength || n > maxSegmentLength {
		return dcxerrors.New(dcxerrors.InvalidPath, "segment length must be 1-255 characters").
			WithContext("segment", segment)
	}
	if strings.HasSuffix(segment, ".") {
		return dcxerrors.New(dcxerrors.InvalidPath, "segment must not end with '.'").
			WithContext("segment", segment)
	}
	for _, r := range segment {
		if strings.ContainsRune(forbiddenChars, r) {
			return dcxerrors.New(dcxerrors.InvalidPath, "segment contains a forbidden character").
				WithContext("segment", segment)
		}
		if r < 0x20 || r == 0x7f {
			return dcxerrors.New(dcxerrors.InvalidPath, "segment contains a control character").
				WithContext("segment", segment)
		}
	}
	return nil
}

// JoinAbsolute builds the '/'-joined absolute path from root to leaf,
// skipping any empty (transparent) segment.
func JoinAbsolute(segments ...string) string {
	nonEmpty := make([]string, 0, len(segments))
	for _, s := range segments {
		if s != "" {
			nonEmpty = append(nonEmpty, s)
		}
	}
	return strings.Join(nonEmpty, "/")
}

// Ext returns the extension (without the dot) of a path segment's final
// component, or "" if it has none, used as the type-hint suffix on a
// component's local storage file name.
func Ext(segment string) string {
	if i := strings.LastIndexByte(segment, '.'); i >= 0 {
		return segment[i+1:]
	}
	return ""
}

// NewID mints a fresh, globally unique identifier for a node, component,
// composite, or copy-on-write asset. V7 UUIDs are time-ordered, which keeps
// asset file names roughly sorted by creation time on disk.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
