package engine

import "github.com/weftui/weft/internal/ir"

// Scope is a chain of local binding frames. Action execution opens a
// frame per continuation (event payload, fetch result, loop variables);
// lookups walk outward to the enclosing frame.
type Scope struct {
	parent *Scope
	vars   map[string]ir.Value
}

// NewScope creates a frame nested inside parent. A nil parent is the
// root frame.
func NewScope(parent *Scope) *Scope {
	return &Scope{parent: parent, vars: make(map[string]ir.Value)}
}

// Bind sets a name in this frame, shadowing any outer binding.
func (s *Scope) Bind(name string, v ir.Value) {
	s.vars[name] = v
}

// Lookup resolves a name through the frame chain.
func (s *Scope) Lookup(name string) (ir.Value, bool) {
	for frame := s; frame != nil; frame = frame.parent {
		if v, ok := frame.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Externals resolves opaque host-environment references by name. Absent
// names degrade to undefined; resolvers never error.
type Externals interface {
	Resolve(name string) (ir.Value, bool)
}

// ExternalMap is the trivial Externals implementation over a fixed map.
type ExternalMap map[string]ir.Value

// Resolve implements Externals.
func (m ExternalMap) Resolve(name string) (ir.Value, bool) {
	v, ok := m[name]
	return v, ok
}

// RouteContext carries the host router's view of the current location.
// All fields are optional; a nil RouteContext degrades every route
// reference to undefined.
type RouteContext struct {
	Params *ir.Object
	Query  *ir.Object
	Path   string
}

// Value folds the context into one object with params/query/path keys,
// which is what route references resolve against.
func (r *RouteContext) Value() ir.Value {
	if r == nil {
		return ir.Undefined{}
	}
	params := ir.Value(ir.NewObject())
	if r.Params != nil {
		params = r.Params
	}
	query := ir.Value(ir.NewObject())
	if r.Query != nil {
		query = r.Query
	}
	return ir.NewObjectFromEntries(
		ir.E("params", params),
		ir.E("query", query),
		ir.E("path", ir.String(r.Path)),
	)
}
