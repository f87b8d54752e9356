package ir

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// forbiddenSegments are key names that would escape an object's own
// entries in prototype-based hosts. Traversal through them always resolves
// to Undefined and the store rejects writes addressing them.
var forbiddenSegments = map[string]bool{
	"__proto__":   true,
	"constructor": true,
	"prototype":   true,
}

// ForbiddenSegment reports whether a key name is disallowed in paths.
func ForbiddenSegment(name string) bool {
	return forbiddenSegments[name]
}

// Segment is one step of a Path: either a string key addressing a keyed
// container or a non-negative integer addressing an ordered container.
type Segment struct {
	key     string
	index   int
	isIndex bool
}

// Key creates a string segment.
func Key(name string) Segment {
	return Segment{key: name}
}

// Index creates an integer segment.
func Index(i int) Segment {
	return Segment{index: i, isIndex: true}
}

// IsIndex reports whether the segment addresses an ordered container.
func (s Segment) IsIndex() bool { return s.isIndex }

// Index returns the integer for index segments; zero for key segments.
func (s Segment) Index() int { return s.index }

// Key returns the key for string segments; empty for index segments.
func (s Segment) Key() string { return s.key }

// String renders the segment for diagnostics.
func (s Segment) String() string {
	if s.isIndex {
		return strconv.Itoa(s.index)
	}
	return s.key
}

// MarshalJSON renders index segments as numbers and key segments as strings,
// matching the document wire format.
func (s Segment) MarshalJSON() ([]byte, error) {
	if s.isIndex {
		return json.Marshal(s.index)
	}
	return json.Marshal(s.key)
}

// UnmarshalJSON accepts a JSON number (non-negative integer) or string.
func (s *Segment) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var key string
		if err := json.Unmarshal(data, &key); err != nil {
			return err
		}
		*s = Key(key)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("path segment must be a string or integer: %s", string(data))
	}
	i, err := n.Int64()
	if err != nil || i < 0 {
		return fmt.Errorf("path index must be a non-negative integer: %s", n)
	}
	*s = Index(int(i))
	return nil
}

// Path is an ordered sequence of segments locating a value inside nested
// containers. The empty path denotes the entire value.
type Path []Segment

// ParsePath splits a dotted name into a Path. Segments consisting solely
// of digits become index segments ("posts.0.liked" addresses posts[0].liked).
// The empty string parses to the empty path.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}

	parts := strings.Split(dotted, ".")
	path := make(Path, 0, len(parts))
	for _, part := range parts {
		if i, err := strconv.Atoi(part); err == nil && i >= 0 && part == strconv.Itoa(i) {
			path = append(path, Index(i))
			continue
		}
		path = append(path, Key(part))
	}
	return path
}

// IsEmpty reports whether the path addresses the entire value.
func (p Path) IsEmpty() bool { return len(p) == 0 }

// String renders the path in dotted form for diagnostics.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, s := range p {
		parts[i] = s.String()
	}
	return strings.Join(parts, ".")
}

// Forbidden reports whether any segment uses a disallowed key name.
func (p Path) Forbidden() bool {
	for _, s := range p {
		if !s.isIndex && ForbiddenSegment(s.key) {
			return true
		}
	}
	return false
}

// Validate checks the path for disallowed segments. The read side degrades
// such paths to Undefined; the write side calls Validate and rejects them.
func (p Path) Validate() error {
	for _, s := range p {
		if !s.isIndex && ForbiddenSegment(s.key) {
			return fmt.Errorf("path segment %q is not allowed", s.key)
		}
	}
	return nil
}

// UnmarshalJSON accepts either a JSON array of string/int segments or a
// dotted string ("a.b.0").
func (p *Path) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var dotted string
		if err := json.Unmarshal(data, &dotted); err != nil {
			return err
		}
		*p = ParsePath(dotted)
		return nil
	}

	var segs []Segment
	if err := json.Unmarshal(data, &segs); err != nil {
		return fmt.Errorf("path must be a dotted string or an array of segments: %w", err)
	}
	*p = Path(segs)
	return nil
}

// MarshalJSON renders the path as an array of segments.
func (p Path) MarshalJSON() ([]byte, error) {
	return json.Marshal([]Segment(p))
}

// Resolve walks the path against a value.
//
// Rules (mirroring the store's read contract):
//   - an explicit Null intermediate short-circuits to Null (null is a
//     value, not a miss)
//   - a missing key, out-of-range index, kind-mismatched segment, or
//     scalar intermediate resolves to Undefined
//   - any disallowed segment resolves to Undefined regardless of depth
func (p Path) Resolve(v Value) Value {
	current := v
	for _, seg := range p {
		switch c := current.(type) {
		case Null:
			return Null{}
		case nil, Undefined:
			return Undefined{}
		case *Object:
			if seg.isIndex || ForbiddenSegment(seg.key) {
				return Undefined{}
			}
			current = c.Get(seg.key)
		case *Array:
			if !seg.isIndex {
				return Undefined{}
			}
			if seg.index < 0 || seg.index >= len(c.Items) {
				return Undefined{}
			}
			current = c.Items[seg.index]
		default:
			// Scalar intermediate: nothing below it.
			return Undefined{}
		}
	}
	if current == nil {
		return Undefined{}
	}
	return current
}
