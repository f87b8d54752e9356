package engine

import (
	"slices"

	"github.com/weftui/weft/internal/ir"
)

// runUpdate applies a named structural operation at a path inside a state
// field. The current value at the path is read, transformed into a fresh
// container or scalar, and written back through SetPath, so the store's
// structural-sharing contract holds for every op.
func (x *Executor) runUpdate(action string, s *ir.UpdateStep, scope *Scope) error {
	current, err := x.store.GetPath(s.Target, s.Path)
	if err != nil {
		return x.writeError(action, err)
	}

	next := x.applyUpdate(s, current, scope)
	if ir.IsUndefined(next) {
		// The op did not apply to the current value; leave the field
		// untouched rather than storing a hole.
		return nil
	}
	if err := x.store.SetPath(s.Target, s.Path, next); err != nil {
		return x.writeError(action, err)
	}
	return nil
}

// applyUpdate computes the new value at the op's location. Returning
// Undefined means "no change". Numeric ops treat a non-number current
// value as zero; array ops treat a non-array as empty; toggle coerces by
// truthiness. This mirrors the evaluator's degrade philosophy: a
// mismatched op settles into the shape it implies instead of raising.
func (x *Executor) applyUpdate(s *ir.UpdateStep, current ir.Value, scope *Scope) ir.Value {
	switch s.Op {
	case ir.UpdateIncrement, ir.UpdateDecrement:
		amount := ir.Number(1)
		if s.Value != nil {
			if n, ok := x.eval.Evaluate(s.Value, scope).(ir.Number); ok {
				amount = n
			}
		}
		base, _ := current.(ir.Number)
		if s.Op == ir.UpdateDecrement {
			return base - amount
		}
		return base + amount

	case ir.UpdateToggle:
		return ir.Bool(!ir.Truthy(current))

	case ir.UpdateAppend:
		item := x.eval.Evaluate(s.Value, scope)
		if ir.IsUndefined(item) {
			item = ir.Null{}
		}
		arr := asArray(current)
		arr.Items = append(arr.Items, item)
		return arr

	case ir.UpdateRemoveLast:
		cur, ok := current.(*ir.Array)
		if !ok || len(cur.Items) == 0 {
			return ir.Undefined{}
		}
		return ir.NewArray(cur.Items[:len(cur.Items)-1]...)

	case ir.UpdateRemoveMatching:
		cur, ok := current.(*ir.Array)
		if !ok {
			return ir.Undefined{}
		}
		match := x.eval.Evaluate(s.Value, scope)
		out := ir.NewArray()
		for _, item := range cur.Items {
			if !ir.Equal(item, match) {
				out.Items = append(out.Items, item)
			}
		}
		return out

	case ir.UpdateMerge:
		patch, ok := x.eval.Evaluate(s.Value, scope).(*ir.Object)
		if !ok {
			return ir.Undefined{}
		}
		base, ok := current.(*ir.Object)
		if !ok {
			base = ir.NewObject()
		}
		merged := base.CloneShallow()
		for _, key := range patch.SortedKeys() {
			merged.Entries[key] = patch.Entries[key]
		}
		return merged

	case ir.UpdateReplaceAt:
		cur, ok := current.(*ir.Array)
		if !ok {
			return ir.Undefined{}
		}
		idx, ok := x.evalIndexArg(s.Index, scope)
		if !ok || idx < 0 || idx >= len(cur.Items) {
			return ir.Undefined{}
		}
		next := cur.CloneShallow()
		next.Items[idx] = x.eval.Evaluate(s.Value, scope)
		return next

	case ir.UpdateInsertAt:
		arr := asArray(current)
		idx, ok := x.evalIndexArg(s.Index, scope)
		if !ok {
			return ir.Undefined{}
		}
		idx = clamp(idx, 0, len(arr.Items))
		arr.Items = slices.Insert(arr.Items, idx, x.eval.Evaluate(s.Value, scope))
		return arr

	case ir.UpdateSplice:
		arr := asArray(current)
		idx, ok := x.evalIndexArg(s.Index, scope)
		if !ok {
			return ir.Undefined{}
		}
		idx = clamp(idx, 0, len(arr.Items))
		count := 0
		if s.Count != nil {
			if c, ok := x.evalIndexArg(s.Count, scope); ok {
				count = c
			}
		}
		count = clamp(count, 0, len(arr.Items)-idx)

		var inserted []ir.Value
		if s.Value != nil {
			if items, ok := x.eval.Evaluate(s.Value, scope).(*ir.Array); ok {
				inserted = items.Items
			}
		}
		arr.Items = slices.Delete(arr.Items, idx, idx+count)
		arr.Items = slices.Insert(arr.Items, idx, inserted...)
		return arr

	default:
		return ir.Undefined{}
	}
}

// asArray returns a fresh array seeded with the items of current when it
// is an array, empty otherwise. Always freshly allocated so callers can
// mutate it before handing it to the store.
func asArray(current ir.Value) *ir.Array {
	if cur, ok := current.(*ir.Array); ok {
		return cur.CloneShallow()
	}
	return ir.NewArray()
}

func (x *Executor) evalIndexArg(expr ir.Expr, scope *Scope) (int, bool) {
	if expr == nil {
		return 0, false
	}
	return intArg(x.eval.Evaluate(expr, scope))
}
