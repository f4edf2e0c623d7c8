package filter

import (
	"fmt"
	"strings"
)

// PathSeparator separates nested segments in a filter key (tags__price).
const PathSeparator = "__"

// FieldPath is a parsed filter key: an ordered list of non-empty segments.
type FieldPath struct {
	segments []string
}

// ParsePath splits a filter key on "__".
func ParsePath(key string) (FieldPath, error) {
	if key == "" {
		return FieldPath{}, fmt.Errorf("filter key is required")
	}
	segments := strings.Split(key, PathSeparator)
	for i, s := range segments {
		if s == "" {
			return FieldPath{}, fmt.Errorf("filter key %q has an empty segment at position %d", key, i)
		}
	}
	return FieldPath{segments: segments}, nil
}

// parseKey parses a filter key and strips a trailing range operator segment when
// the value is a number, so "tags__price__gte": 4 yields (tags.price, "gte").
// Any other value keeps the whole key as the path: "tags__lt": ["a"] targets tags.lt.
func parseKey(key string, value any) (FieldPath, string, error) {
	p, err := ParsePath(key)
	if err != nil {
		return FieldPath{}, "", err
	}
	n := len(p.segments)
	if n > 1 && isRangeOp(p.segments[n-1]) && isNumber(value) {
		return FieldPath{segments: p.segments[:n-1]}, p.segments[n-1], nil
	}
	return p, "", nil
}

// Segments returns the path segments.
func (p FieldPath) Segments() []string { return p.segments }

// Dotted renders the path in engine notation (tags.price).
func (p FieldPath) Dotted() string { return strings.Join(p.segments, ".") }

// IsZero reports whether the path was never parsed.
func (p FieldPath) IsZero() bool { return len(p.segments) == 0 }

func (p FieldPath) String() string { return p.Dotted() }
