// Package models defines the domain types for mdboard.
package models

import (
	"encoding/json"
	"strings"
)

const (
	pathSeparator = " / "
	rootLabel     = "(root)"
)

// Path is the ordered chain of heading texts enclosing a task.
// The zero value is the root path. Paths are never mutated in place.
type Path struct {
	segments []string
}

// NewPath returns a path made of the given segments.
func NewPath(segments ...string) Path {
	if len(segments) == 0 {
		return Path{}
	}
	return Path{segments: append([]string(nil), segments...)}
}

// RootPath returns the zero-depth path.
func RootPath() Path {
	return Path{}
}

// ParsePath builds a path from a "/"-delimited display string such as
// "Work / Project A". Blank segments are dropped.
func ParsePath(s string) Path {
	if strings.TrimSpace(s) == "" {
		return Path{}
	}
	var segs []string
	for _, part := range strings.Split(s, "/") {
		part = strings.TrimSpace(part)
		if part != "" {
			segs = append(segs, part)
		}
	}
	return NewPath(segs...)
}

// Segments returns a copy of the path segments.
func (p Path) Segments() []string {
	out := make([]string, len(p.segments))
	copy(out, p.segments)
	return out
}

// IsRoot reports whether p has no segments.
func (p Path) IsRoot() bool {
	return len(p.segments) == 0
}

// Depth returns the number of segments.
func (p Path) Depth() int {
	return len(p.segments)
}

// Last returns the final segment, or "" for root.
func (p Path) Last() string {
	if p.IsRoot() {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// Parent returns p without its last segment. The parent of root is root.
func (p Path) Parent() Path {
	if p.IsRoot() {
		return p
	}
	return NewPath(p.segments[:len(p.segments)-1]...)
}

// Child returns p extended by segment.
func (p Path) Child(segment string) Path {
	segs := make([]string, 0, len(p.segments)+1)
	segs = append(segs, p.segments...)
	return Path{segments: append(segs, segment)}
}

// WithLast returns p with its last segment replaced. For root it returns a
// single-segment path.
func (p Path) WithLast(segment string) Path {
	return p.Parent().Child(segment)
}

// Equal reports whether both paths have identical segments in the same order.
func (p Path) Equal(other Path) bool {
	if len(p.segments) != len(other.segments) {
		return false
	}
	for i, s := range p.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is an ancestor of (or equal to) p.
// Root is a prefix of every path.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix.segments) > len(p.segments) {
		return false
	}
	for i, s := range prefix.segments {
		if p.segments[i] != s {
			return false
		}
	}
	return true
}

// String returns the display form, e.g. "Work / Project A", or "(root)".
func (p Path) String() string {
	if p.IsRoot() {
		return rootLabel
	}
	return strings.Join(p.segments, pathSeparator)
}

// MarshalJSON encodes the path as an array of segments.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Segments())
}

// UnmarshalJSON accepts either an array of segments or a display string.
func (p *Path) UnmarshalJSON(data []byte) error {
	var segs []string
	if err := json.Unmarshal(data, &segs); err == nil {
		*p = NewPath(segs...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*p = ParsePath(s)
	return nil
}
