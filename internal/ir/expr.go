package ir

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Expr is a sealed interface over the compiled expression variants.
// Expression trees are immutable: the evaluator never mutates them.
//
// Wire format: every expression object carries an "expr" discriminator
// field naming the variant (lit, var, local, ext, route, bin, not, cond,
// get, idx, call, concat). The remaining field names are part of the
// compiled-document contract and must not change.
type Expr interface {
	expr() // Sealed - only the variants in this file implement it
}

// Lit is a literal value: {"expr":"lit","value":<json>}.
type Lit struct {
	Value Value
}

func (*Lit) expr() {}

// StateRef reads a state field: {"expr":"var","name":"cart","path":[0,"qty"]}.
// A name containing "."-separated segments is equivalent to supplying those
// segments via the path mechanism.
type StateRef struct {
	Name string
	Path Path
}

func (*StateRef) expr() {}

// LocalRef reads a local binding (loop variable, event payload):
// {"expr":"local","name":"item","path":["id"]}.
type LocalRef struct {
	Name string
	Path Path
}

func (*LocalRef) expr() {}

// ExternalRef reads an opaque host-provided object by name:
// {"expr":"ext","name":"session","path":["user","id"]}.
type ExternalRef struct {
	Name string
	Path Path
}

func (*ExternalRef) expr() {}

// RouteRef reads the route context: {"expr":"route","name":"params.id"}.
// Names resolve against the route context's params, query, and path.
type RouteRef struct {
	Name string
}

func (*RouteRef) expr() {}

// BinaryOp names for Binary expressions.
const (
	OpAdd = "+"
	OpSub = "-"
	OpMul = "*"
	OpDiv = "/"
	OpMod = "%"
	OpEq  = "=="
	OpNe  = "!="
	OpLt  = "<"
	OpLe  = "<="
	OpGt  = ">"
	OpGe  = ">="
	OpAnd = "&&"
	OpOr  = "||"
)

// Binary applies an operator to two operands:
// {"expr":"bin","op":"+","left":...,"right":...}.
// Logical && and || short-circuit: the right operand is not evaluated when
// the left already determines the result.
type Binary struct {
	Op    string
	Left  Expr
	Right Expr
}

func (*Binary) expr() {}

// Not boolean-coerces its operand and inverts:
// {"expr":"not","operand":...}.
type Not struct {
	Operand Expr
}

func (*Not) expr() {}

// Cond evaluates the condition, then exactly one branch:
// {"expr":"cond","if":...,"then":...,"else":...}.
type Cond struct {
	If   Expr
	Then Expr
	Else Expr
}

func (*Cond) expr() {}

// Get resolves a key on the evaluated target:
// {"expr":"get","target":...,"key":"name"}.
type Get struct {
	Target Expr
	Key    string
}

func (*Get) expr() {}

// Idx resolves a computed index on the evaluated target:
// {"expr":"idx","target":...,"index":...}.
type Idx struct {
	Target Expr
	Index  Expr
}

func (*Idx) expr() {}

// Call invokes a whitelisted pure method on the evaluated target:
// {"expr":"call","target":...,"method":"slice","args":[...]}.
// Non-whitelisted methods and unsupported target types evaluate to
// Undefined rather than raising.
type Call struct {
	Target Expr
	Method string
	Args   []Expr
}

func (*Call) expr() {}

// Concat joins the string renderings of its parts:
// {"expr":"concat","parts":[...]}.
type Concat struct {
	Parts []Expr
}

func (*Concat) expr() {}

// SplitRefName normalizes a dotted reference name into a base name and the
// extra path implied by the dots, prepended to the declared path.
// "obj.__proto__" with no declared path yields ("obj", ["__proto__"]).
func SplitRefName(name string, declared Path) (string, Path) {
	if !strings.Contains(name, ".") {
		return name, declared
	}
	parsed := ParsePath(name)
	base := parsed[0].Key()
	extra := append(Path{}, parsed[1:]...)
	return base, append(extra, declared...)
}

// UnmarshalExpr decodes a JSON expression object by its "expr" discriminator.
func UnmarshalExpr(data []byte) (Expr, error) {
	var head struct {
		Expr string `json:"expr"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("expression must be an object: %w", err)
	}

	switch head.Expr {
	case "lit":
		var raw struct {
			Value json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		v, err := UnmarshalValue(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("lit value: %w", err)
		}
		return &Lit{Value: v}, nil

	case "var", "local", "ext":
		var raw struct {
			Name string `json:"name"`
			Path Path   `json:"path,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Name == "" {
			return nil, fmt.Errorf("%s expression requires a name", head.Expr)
		}
		switch head.Expr {
		case "var":
			return &StateRef{Name: raw.Name, Path: raw.Path}, nil
		case "local":
			return &LocalRef{Name: raw.Name, Path: raw.Path}, nil
		default:
			return &ExternalRef{Name: raw.Name, Path: raw.Path}, nil
		}

	case "route":
		var raw struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Name == "" {
			return nil, fmt.Errorf("route expression requires a name")
		}
		return &RouteRef{Name: raw.Name}, nil

	case "bin":
		var raw struct {
			Op    string          `json:"op"`
			Left  json.RawMessage `json:"left"`
			Right json.RawMessage `json:"right"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		left, err := UnmarshalExpr(raw.Left)
		if err != nil {
			return nil, fmt.Errorf("bin left: %w", err)
		}
		right, err := UnmarshalExpr(raw.Right)
		if err != nil {
			return nil, fmt.Errorf("bin right: %w", err)
		}
		return &Binary{Op: raw.Op, Left: left, Right: right}, nil

	case "not":
		var raw struct {
			Operand json.RawMessage `json:"operand"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		operand, err := UnmarshalExpr(raw.Operand)
		if err != nil {
			return nil, fmt.Errorf("not operand: %w", err)
		}
		return &Not{Operand: operand}, nil

	case "cond":
		var raw struct {
			If   json.RawMessage `json:"if"`
			Then json.RawMessage `json:"then"`
			Else json.RawMessage `json:"else"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		condition, err := UnmarshalExpr(raw.If)
		if err != nil {
			return nil, fmt.Errorf("cond if: %w", err)
		}
		thenBranch, err := UnmarshalExpr(raw.Then)
		if err != nil {
			return nil, fmt.Errorf("cond then: %w", err)
		}
		elseBranch, err := UnmarshalExpr(raw.Else)
		if err != nil {
			return nil, fmt.Errorf("cond else: %w", err)
		}
		return &Cond{If: condition, Then: thenBranch, Else: elseBranch}, nil

	case "get":
		var raw struct {
			Target json.RawMessage `json:"target"`
			Key    string          `json:"key"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		target, err := UnmarshalExpr(raw.Target)
		if err != nil {
			return nil, fmt.Errorf("get target: %w", err)
		}
		return &Get{Target: target, Key: raw.Key}, nil

	case "idx":
		var raw struct {
			Target json.RawMessage `json:"target"`
			Index  json.RawMessage `json:"index"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		target, err := UnmarshalExpr(raw.Target)
		if err != nil {
			return nil, fmt.Errorf("idx target: %w", err)
		}
		index, err := UnmarshalExpr(raw.Index)
		if err != nil {
			return nil, fmt.Errorf("idx index: %w", err)
		}
		return &Idx{Target: target, Index: index}, nil

	case "call":
		var raw struct {
			Target json.RawMessage   `json:"target"`
			Method string            `json:"method"`
			Args   []json.RawMessage `json:"args,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		target, err := UnmarshalExpr(raw.Target)
		if err != nil {
			return nil, fmt.Errorf("call target: %w", err)
		}
		args := make([]Expr, len(raw.Args))
		for i, argRaw := range raw.Args {
			arg, err := UnmarshalExpr(argRaw)
			if err != nil {
				return nil, fmt.Errorf("call args[%d]: %w", i, err)
			}
			args[i] = arg
		}
		return &Call{Target: target, Method: raw.Method, Args: args}, nil

	case "concat":
		var raw struct {
			Parts []json.RawMessage `json:"parts"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		parts := make([]Expr, len(raw.Parts))
		for i, partRaw := range raw.Parts {
			part, err := UnmarshalExpr(partRaw)
			if err != nil {
				return nil, fmt.Errorf("concat parts[%d]: %w", i, err)
			}
			parts[i] = part
		}
		return &Concat{Parts: parts}, nil

	case "":
		return nil, fmt.Errorf("expression missing \"expr\" discriminator")
	default:
		return nil, fmt.Errorf("unknown expression kind %q", head.Expr)
	}
}

// MarshalExpr renders an expression back to its wire form.
func MarshalExpr(e Expr) ([]byte, error) {
	switch ex := e.(type) {
	case *Lit:
		val, err := MarshalValue(ex.Value)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":  json.RawMessage(`"lit"`),
			"value": val,
		})
	case *StateRef:
		return marshalRef("var", ex.Name, ex.Path)
	case *LocalRef:
		return marshalRef("local", ex.Name, ex.Path)
	case *ExternalRef:
		return marshalRef("ext", ex.Name, ex.Path)
	case *RouteRef:
		return json.Marshal(map[string]any{"expr": "route", "name": ex.Name})
	case *Binary:
		left, err := MarshalExpr(ex.Left)
		if err != nil {
			return nil, err
		}
		right, err := MarshalExpr(ex.Right)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":  json.RawMessage(`"bin"`),
			"op":    mustMarshalString(ex.Op),
			"left":  left,
			"right": right,
		})
	case *Not:
		operand, err := MarshalExpr(ex.Operand)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":    json.RawMessage(`"not"`),
			"operand": operand,
		})
	case *Cond:
		condition, err := MarshalExpr(ex.If)
		if err != nil {
			return nil, err
		}
		thenBranch, err := MarshalExpr(ex.Then)
		if err != nil {
			return nil, err
		}
		elseBranch, err := MarshalExpr(ex.Else)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr": json.RawMessage(`"cond"`),
			"if":   condition,
			"then": thenBranch,
			"else": elseBranch,
		})
	case *Get:
		target, err := MarshalExpr(ex.Target)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":   json.RawMessage(`"get"`),
			"target": target,
			"key":    mustMarshalString(ex.Key),
		})
	case *Idx:
		target, err := MarshalExpr(ex.Target)
		if err != nil {
			return nil, err
		}
		index, err := MarshalExpr(ex.Index)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":   json.RawMessage(`"idx"`),
			"target": target,
			"index":  index,
		})
	case *Call:
		target, err := MarshalExpr(ex.Target)
		if err != nil {
			return nil, err
		}
		args := make([]json.RawMessage, len(ex.Args))
		for i, arg := range ex.Args {
			argBytes, err := MarshalExpr(arg)
			if err != nil {
				return nil, err
			}
			args[i] = argBytes
		}
		argsBytes, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":   json.RawMessage(`"call"`),
			"target": target,
			"method": mustMarshalString(ex.Method),
			"args":   argsBytes,
		})
	case *Concat:
		parts := make([]json.RawMessage, len(ex.Parts))
		for i, part := range ex.Parts {
			partBytes, err := MarshalExpr(part)
			if err != nil {
				return nil, err
			}
			parts[i] = partBytes
		}
		partsBytes, err := json.Marshal(parts)
		if err != nil {
			return nil, err
		}
		return json.Marshal(map[string]json.RawMessage{
			"expr":  json.RawMessage(`"concat"`),
			"parts": partsBytes,
		})
	default:
		return nil, fmt.Errorf("unknown expression type: %T", e)
	}
}

func marshalRef(kind, name string, path Path) ([]byte, error) {
	out := map[string]any{"expr": kind, "name": name}
	if len(path) > 0 {
		out["path"] = path
	}
	return json.Marshal(out)
}

func mustMarshalString(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}
