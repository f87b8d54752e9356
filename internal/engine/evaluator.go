package engine

import (
	"math"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/store"
)

// Evaluator walks compiled expression trees against the state store,
// local bindings, external references, and the route context.
//
// Evaluation never fails: missing names, missing paths, forbidden
// segments, and unsupported operand types degrade to undefined so a
// partially-defined program renders blank instead of crashing. The only
// side effect of evaluation is dependency registration, which happens
// transparently through store reads performed inside an active effect.
type Evaluator struct {
	store     *store.Store
	externals Externals
	route     *RouteContext
}

// NewEvaluator creates an evaluator over st. externals and route may be
// nil; references through them then resolve to undefined.
func NewEvaluator(st *store.Store, externals Externals, route *RouteContext) *Evaluator {
	return &Evaluator{store: st, externals: externals, route: route}
}

// Evaluate computes an expression in the given local scope. A nil scope
// is an empty one. Operands evaluate depth-first, left-to-right.
func (ev *Evaluator) Evaluate(expr ir.Expr, scope *Scope) ir.Value {
	switch e := expr.(type) {
	case *ir.Lit:
		return e.Value

	case *ir.StateRef:
		name, path := ir.SplitRefName(e.Name, e.Path)
		v, err := ev.store.Get(name)
		if err != nil {
			return ir.Undefined{}
		}
		return path.Resolve(v)

	case *ir.LocalRef:
		name, path := ir.SplitRefName(e.Name, e.Path)
		if scope == nil {
			return ir.Undefined{}
		}
		v, ok := scope.Lookup(name)
		if !ok {
			return ir.Undefined{}
		}
		return path.Resolve(v)

	case *ir.ExternalRef:
		name, path := ir.SplitRefName(e.Name, e.Path)
		if ev.externals == nil {
			return ir.Undefined{}
		}
		v, ok := ev.externals.Resolve(name)
		if !ok {
			return ir.Undefined{}
		}
		return path.Resolve(v)

	case *ir.RouteRef:
		return ir.ParsePath(e.Name).Resolve(ev.route.Value())

	case *ir.Binary:
		return ev.evalBinary(e, scope)

	case *ir.Not:
		return ir.Bool(!ir.Truthy(ev.Evaluate(e.Operand, scope)))

	case *ir.Cond:
		if ir.Truthy(ev.Evaluate(e.If, scope)) {
			return ev.Evaluate(e.Then, scope)
		}
		return ev.Evaluate(e.Else, scope)

	case *ir.Get:
		if ir.ForbiddenSegment(e.Key) {
			return ir.Undefined{}
		}
		return ir.Path{ir.Key(e.Key)}.Resolve(ev.Evaluate(e.Target, scope))

	case *ir.Idx:
		return ev.evalIndex(e, scope)

	case *ir.Call:
		return ev.evalCall(e, scope)

	case *ir.Concat:
		var out []byte
		for _, part := range e.Parts {
			out = append(out, ir.Render(ev.Evaluate(part, scope))...)
		}
		return ir.String(out)

	default:
		return ir.Undefined{}
	}
}

// evalBinary applies a binary operator. Logical operators short-circuit
// and return the deciding operand itself, so they compose with Truthy the
// way chained conditions expect. Arithmetic is IEEE-754 over numbers:
// division by zero yields an infinity, not an error.
func (ev *Evaluator) evalBinary(e *ir.Binary, scope *Scope) ir.Value {
	if e.Op == ir.OpAnd {
		left := ev.Evaluate(e.Left, scope)
		if !ir.Truthy(left) {
			return left
		}
		return ev.Evaluate(e.Right, scope)
	}
	if e.Op == ir.OpOr {
		left := ev.Evaluate(e.Left, scope)
		if ir.Truthy(left) {
			return left
		}
		return ev.Evaluate(e.Right, scope)
	}

	left := ev.Evaluate(e.Left, scope)
	right := ev.Evaluate(e.Right, scope)

	switch e.Op {
	case ir.OpEq:
		return ir.Bool(ir.Equal(left, right))
	case ir.OpNe:
		return ir.Bool(!ir.Equal(left, right))
	}

	// Two strings compare lexicographically; "+" on strings concatenates.
	if ls, lok := left.(ir.String); lok {
		if rs, rok := right.(ir.String); rok {
			switch e.Op {
			case ir.OpAdd:
				return ls + rs
			case ir.OpLt:
				return ir.Bool(ls < rs)
			case ir.OpLe:
				return ir.Bool(ls <= rs)
			case ir.OpGt:
				return ir.Bool(ls > rs)
			case ir.OpGe:
				return ir.Bool(ls >= rs)
			}
			return ir.Undefined{}
		}
	}

	ln, lok := left.(ir.Number)
	rn, rok := right.(ir.Number)
	if !lok || !rok {
		return ir.Undefined{}
	}

	switch e.Op {
	case ir.OpAdd:
		return ln + rn
	case ir.OpSub:
		return ln - rn
	case ir.OpMul:
		return ln * rn
	case ir.OpDiv:
		// IEEE-754: x/0 is ±Inf, 0/0 is NaN.
		return ln / rn
	case ir.OpMod:
		return ir.Number(math.Mod(float64(ln), float64(rn)))
	case ir.OpLt:
		return ir.Bool(ln < rn)
	case ir.OpLe:
		return ir.Bool(ln <= rn)
	case ir.OpGt:
		return ir.Bool(ln > rn)
	case ir.OpGe:
		return ir.Bool(ln >= rn)
	default:
		return ir.Undefined{}
	}
}

// evalIndex resolves a computed index. A null base short-circuits to null
// (explicit null is a value, not a miss); a non-integral or out-of-range
// index degrades to undefined.
func (ev *Evaluator) evalIndex(e *ir.Idx, scope *Scope) ir.Value {
	base := ev.Evaluate(e.Target, scope)
	if _, isNull := base.(ir.Null); isNull {
		return ir.Null{}
	}

	idx := ev.Evaluate(e.Index, scope)

	// A string index addresses a keyed container, mirroring the store's
	// path semantics for dynamic keys.
	if key, ok := idx.(ir.String); ok {
		if ir.ForbiddenSegment(string(key)) {
			return ir.Undefined{}
		}
		return ir.Path{ir.Key(string(key))}.Resolve(base)
	}

	n, ok := idx.(ir.Number)
	if !ok || float64(n) != math.Trunc(float64(n)) || n < 0 {
		return ir.Undefined{}
	}
	return ir.Path{ir.Index(int(n))}.Resolve(base)
}
