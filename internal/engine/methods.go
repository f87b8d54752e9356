package engine

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/weftui/weft/internal/ir"
)

// The method whitelist is a closed dispatch table per target kind, never
// reflective lookup: an absent method or a mismatched target type must
// deterministically evaluate to undefined.
var (
	stringMethods = map[string]func(s string, args []ir.Value) ir.Value{
		"length": func(s string, _ []ir.Value) ir.Value {
			return ir.Number(len([]rune(s)))
		},
		"slice": func(s string, args []ir.Value) ir.Value {
			runes := []rune(s)
			start, end, ok := sliceBounds(len(runes), args)
			if !ok {
				return ir.Undefined{}
			}
			return ir.String(runes[start:end])
		},
		"toUpperCase": func(s string, _ []ir.Value) ir.Value {
			return ir.String(strings.ToUpper(s))
		},
		"toLowerCase": func(s string, _ []ir.Value) ir.Value {
			return ir.String(strings.ToLower(s))
		},
		"trim": func(s string, _ []ir.Value) ir.Value {
			return ir.String(strings.TrimSpace(s))
		},
		"indexOf": func(s string, args []ir.Value) ir.Value {
			needle, ok := stringArg(args, 0)
			if !ok {
				return ir.Undefined{}
			}
			// Rune index, not byte offset, so the result lines up with
			// length and slice on non-ASCII strings.
			i := strings.Index(s, needle)
			if i < 0 {
				return ir.Number(-1)
			}
			return ir.Number(utf8.RuneCountInString(s[:i]))
		},
		"includes": func(s string, args []ir.Value) ir.Value {
			needle, ok := stringArg(args, 0)
			if !ok {
				return ir.Undefined{}
			}
			return ir.Bool(strings.Contains(s, needle))
		},
		"split": func(s string, args []ir.Value) ir.Value {
			sep, ok := stringArg(args, 0)
			if !ok {
				return ir.Undefined{}
			}
			parts := strings.Split(s, sep)
			out := ir.NewArray()
			for _, p := range parts {
				out.Items = append(out.Items, ir.String(p))
			}
			return out
		},
		"replace": func(s string, args []ir.Value) ir.Value {
			old, ok1 := stringArg(args, 0)
			repl, ok2 := stringArg(args, 1)
			if !ok1 || !ok2 {
				return ir.Undefined{}
			}
			// Mirrors the first-occurrence semantics of the usual
			// string replace, not replace-all.
			return ir.String(strings.Replace(s, old, repl, 1))
		},
	}

	arrayMethods = map[string]func(a *ir.Array, args []ir.Value) ir.Value{
		"length": func(a *ir.Array, _ []ir.Value) ir.Value {
			return ir.Number(len(a.Items))
		},
		"slice": func(a *ir.Array, args []ir.Value) ir.Value {
			start, end, ok := sliceBounds(len(a.Items), args)
			if !ok {
				return ir.Undefined{}
			}
			return ir.NewArray(a.Items[start:end]...)
		},
		"indexOf": func(a *ir.Array, args []ir.Value) ir.Value {
			if len(args) < 1 {
				return ir.Undefined{}
			}
			for i, item := range a.Items {
				if ir.Equal(item, args[0]) {
					return ir.Number(i)
				}
			}
			return ir.Number(-1)
		},
		"includes": func(a *ir.Array, args []ir.Value) ir.Value {
			if len(args) < 1 {
				return ir.Undefined{}
			}
			for _, item := range a.Items {
				if ir.Equal(item, args[0]) {
					return ir.Bool(true)
				}
			}
			return ir.Bool(false)
		},
		"join": func(a *ir.Array, args []ir.Value) ir.Value {
			sep := ","
			if len(args) > 0 {
				s, ok := args[0].(ir.String)
				if !ok {
					return ir.Undefined{}
				}
				sep = string(s)
			}
			parts := make([]string, len(a.Items))
			for i, item := range a.Items {
				parts[i] = ir.Render(item)
			}
			return ir.String(strings.Join(parts, sep))
		},
	}
)

// evalCall dispatches a whitelisted method call. Unknown methods and
// unsupported target types evaluate to undefined rather than raising.
func (ev *Evaluator) evalCall(e *ir.Call, scope *Scope) ir.Value {
	target := ev.Evaluate(e.Target, scope)
	args := make([]ir.Value, len(e.Args))
	for i, a := range e.Args {
		args[i] = ev.Evaluate(a, scope)
	}

	switch t := target.(type) {
	case ir.String:
		if fn, ok := stringMethods[e.Method]; ok {
			return fn(string(t), args)
		}
	case *ir.Array:
		if fn, ok := arrayMethods[e.Method]; ok {
			return fn(t, args)
		}
	}
	return ir.Undefined{}
}

// sliceBounds normalizes optional start/end arguments against length,
// supporting negative offsets counted from the end, and clamps the result
// to a valid range.
func sliceBounds(length int, args []ir.Value) (start, end int, ok bool) {
	start, end = 0, length
	if len(args) > 0 {
		n, isNum := intArg(args[0])
		if !isNum {
			return 0, 0, false
		}
		start = n
	}
	if len(args) > 1 {
		n, isNum := intArg(args[1])
		if !isNum {
			return 0, 0, false
		}
		end = n
	}
	if start < 0 {
		start += length
	}
	if end < 0 {
		end += length
	}
	start = clamp(start, 0, length)
	end = clamp(end, 0, length)
	if end < start {
		end = start
	}
	return start, end, true
}

func intArg(v ir.Value) (int, bool) {
	n, ok := v.(ir.Number)
	if !ok || float64(n) != math.Trunc(float64(n)) {
		return 0, false
	}
	return int(n), true
}

func stringArg(args []ir.Value, i int) (string, bool) {
	if i >= len(args) {
		return "", false
	}
	s, ok := args[i].(ir.String)
	return string(s), ok
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}
