package ir

import (
	"encoding/json"
	"fmt"
)

// Step is a sealed interface over compiled action step variants.
//
// Wire format: every step object carries a "do" discriminator field naming
// the variant (set, setPath, update, if, delay, interval, cancel, fetch,
// focus). Steps execute strictly in list order; later steps observe the
// mutations of earlier steps in the same invocation.
type Step interface {
	step() // Sealed - only the variants in this file implement it
}

// SetStep replaces a state field's entire value:
// {"do":"set","target":"count","value":<expr>}.
type SetStep struct {
	Target string
	Value  Expr
}

func (*SetStep) step() {}

// SetPathStep writes a value at a path inside a state field:
// {"do":"setPath","target":"user","path":["address","city"],"value":<expr>}.
type SetPathStep struct {
	Target string
	Path   Path
	Value  Expr
}

func (*SetPathStep) step() {}

// Structural update operation names for UpdateStep.
const (
	UpdateIncrement      = "increment"
	UpdateDecrement      = "decrement"
	UpdateAppend         = "append"
	UpdateRemoveLast     = "removeLast"
	UpdateRemoveMatching = "removeMatching"
	UpdateToggle         = "toggle"
	UpdateMerge          = "merge"
	UpdateReplaceAt      = "replaceAt"
	UpdateInsertAt       = "insertAt"
	UpdateSplice         = "splice"
)

// UpdateStep applies a named structural operation at a path inside a state
// field: {"do":"update","target":"posts","path":[0],"op":"toggle"}.
//
// Operand usage varies by op: Value carries the amount (increment,
// decrement), the item (append, insertAt, replaceAt), the match value
// (removeMatching), the object to merge (merge), or the replacement items
// array (splice). Index carries the position (replaceAt, insertAt, splice
// start) and Count the splice delete count.
type UpdateStep struct {
	Target string
	Path   Path
	Op     string
	Value  Expr
	Index  Expr
	Count  Expr
}

func (*UpdateStep) step() {}

// IfStep evaluates the condition and executes exactly one branch:
// {"do":"if","if":<expr>,"then":[...],"else":[...]}.
type IfStep struct {
	If   Expr
	Then []Step
	Else []Step
}

func (*IfStep) step() {}

// DelayStep schedules its continuation after a fixed delay:
// {"do":"delay","ms":<expr>,"then":[...]}.
// The remaining sibling steps of the enclosing action are NOT blocked;
// the continuation runs as its own nested step sequence once the delay
// elapses.
type DelayStep struct {
	MS   Expr
	Then []Step
}

func (*DelayStep) step() {}

// HandleSlot names where a timer's cancellation handle is stored: a local
// binding ({"local":"ticker"}) or a state path
// ({"target":"timers","path":["tick"]}).
type HandleSlot struct {
	Local  string `json:"local,omitempty"`
	Target string `json:"target,omitempty"`
	Path   Path   `json:"path,omitempty"`
}

// IntervalStep starts a recurring timer and stores its cancellation handle:
// {"do":"interval","ms":<expr>,"handle":{...},"then":[...]}.
// The then-steps run on every tick.
type IntervalStep struct {
	MS     Expr
	Handle HandleSlot
	Then   []Step
}

func (*IntervalStep) step() {}

// CancelStep cancels a pending timer by its stored handle:
// {"do":"cancel","handle":<expr>}.
// A no-op if the timer already fired its last tick or was already cancelled.
type CancelStep struct {
	Handle Expr
}

func (*CancelStep) step() {}

// FetchStep performs an asynchronous fetch through the host's Fetcher:
// {"do":"fetch","url":<expr>,"bind":"response","onSuccess":[...],"onError":[...]}.
// Bind names the local binding carrying the response payload (on success)
// or the error message (on error) inside the continuations; it defaults to
// "response". A failure with no onError continuation surfaces on the
// host's unhandled-error channel instead of aborting sibling actions.
type FetchStep struct {
	URL       Expr
	Bind      string
	OnSuccess []Step
	OnError   []Step
}

func (*FetchStep) step() {}

// FocusStep requests a focus-style side effect from the host renderer:
// {"do":"focus","target":<expr>}.
type FocusStep struct {
	Target Expr
}

func (*FocusStep) step() {}

// UnmarshalStep decodes a JSON step object by its "do" discriminator.
func UnmarshalStep(data []byte) (Step, error) {
	var head struct {
		Do string `json:"do"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("step must be an object: %w", err)
	}

	switch head.Do {
	case "set":
		var raw struct {
			Target string          `json:"target"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Target == "" {
			return nil, fmt.Errorf("set step requires a target")
		}
		value, err := UnmarshalExpr(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("set value: %w", err)
		}
		return &SetStep{Target: raw.Target, Value: value}, nil

	case "setPath":
		var raw struct {
			Target string          `json:"target"`
			Path   Path            `json:"path"`
			Value  json.RawMessage `json:"value"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Target == "" {
			return nil, fmt.Errorf("setPath step requires a target")
		}
		value, err := UnmarshalExpr(raw.Value)
		if err != nil {
			return nil, fmt.Errorf("setPath value: %w", err)
		}
		return &SetPathStep{Target: raw.Target, Path: raw.Path, Value: value}, nil

	case "update":
		var raw struct {
			Target string          `json:"target"`
			Path   Path            `json:"path,omitempty"`
			Op     string          `json:"op"`
			Value  json.RawMessage `json:"value,omitempty"`
			Index  json.RawMessage `json:"index,omitempty"`
			Count  json.RawMessage `json:"count,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		if raw.Target == "" {
			return nil, fmt.Errorf("update step requires a target")
		}
		if !validUpdateOp(raw.Op) {
			return nil, fmt.Errorf("unknown update op %q", raw.Op)
		}
		step := &UpdateStep{Target: raw.Target, Path: raw.Path, Op: raw.Op}
		var err error
		if step.Value, err = unmarshalOptionalExpr(raw.Value); err != nil {
			return nil, fmt.Errorf("update value: %w", err)
		}
		if step.Index, err = unmarshalOptionalExpr(raw.Index); err != nil {
			return nil, fmt.Errorf("update index: %w", err)
		}
		if step.Count, err = unmarshalOptionalExpr(raw.Count); err != nil {
			return nil, fmt.Errorf("update count: %w", err)
		}
		return step, nil

	case "if":
		var raw struct {
			If   json.RawMessage   `json:"if"`
			Then []json.RawMessage `json:"then,omitempty"`
			Else []json.RawMessage `json:"else,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		condition, err := UnmarshalExpr(raw.If)
		if err != nil {
			return nil, fmt.Errorf("if condition: %w", err)
		}
		thenSteps, err := unmarshalSteps(raw.Then)
		if err != nil {
			return nil, fmt.Errorf("if then: %w", err)
		}
		elseSteps, err := unmarshalSteps(raw.Else)
		if err != nil {
			return nil, fmt.Errorf("if else: %w", err)
		}
		return &IfStep{If: condition, Then: thenSteps, Else: elseSteps}, nil

	case "delay":
		var raw struct {
			MS   json.RawMessage   `json:"ms"`
			Then []json.RawMessage `json:"then,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		ms, err := UnmarshalExpr(raw.MS)
		if err != nil {
			return nil, fmt.Errorf("delay ms: %w", err)
		}
		thenSteps, err := unmarshalSteps(raw.Then)
		if err != nil {
			return nil, fmt.Errorf("delay then: %w", err)
		}
		return &DelayStep{MS: ms, Then: thenSteps}, nil

	case "interval":
		var raw struct {
			MS     json.RawMessage   `json:"ms"`
			Handle HandleSlot        `json:"handle"`
			Then   []json.RawMessage `json:"then,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		ms, err := UnmarshalExpr(raw.MS)
		if err != nil {
			return nil, fmt.Errorf("interval ms: %w", err)
		}
		if raw.Handle.Local == "" && raw.Handle.Target == "" {
			return nil, fmt.Errorf("interval step requires a handle slot")
		}
		thenSteps, err := unmarshalSteps(raw.Then)
		if err != nil {
			return nil, fmt.Errorf("interval then: %w", err)
		}
		return &IntervalStep{MS: ms, Handle: raw.Handle, Then: thenSteps}, nil

	case "cancel":
		var raw struct {
			Handle json.RawMessage `json:"handle"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		handle, err := UnmarshalExpr(raw.Handle)
		if err != nil {
			return nil, fmt.Errorf("cancel handle: %w", err)
		}
		return &CancelStep{Handle: handle}, nil

	case "fetch":
		var raw struct {
			URL       json.RawMessage   `json:"url"`
			Bind      string            `json:"bind,omitempty"`
			OnSuccess []json.RawMessage `json:"onSuccess,omitempty"`
			OnError   []json.RawMessage `json:"onError,omitempty"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		url, err := UnmarshalExpr(raw.URL)
		if err != nil {
			return nil, fmt.Errorf("fetch url: %w", err)
		}
		onSuccess, err := unmarshalSteps(raw.OnSuccess)
		if err != nil {
			return nil, fmt.Errorf("fetch onSuccess: %w", err)
		}
		onError, err := unmarshalSteps(raw.OnError)
		if err != nil {
			return nil, fmt.Errorf("fetch onError: %w", err)
		}
		return &FetchStep{URL: url, Bind: raw.Bind, OnSuccess: onSuccess, OnError: onError}, nil

	case "focus":
		var raw struct {
			Target json.RawMessage `json:"target"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
		target, err := UnmarshalExpr(raw.Target)
		if err != nil {
			return nil, fmt.Errorf("focus target: %w", err)
		}
		return &FocusStep{Target: target}, nil

	case "":
		return nil, fmt.Errorf("step missing \"do\" discriminator")
	default:
		return nil, fmt.Errorf("unknown step kind %q", head.Do)
	}
}

func unmarshalSteps(raws []json.RawMessage) ([]Step, error) {
	if len(raws) == 0 {
		return nil, nil
	}
	steps := make([]Step, len(raws))
	for i, raw := range raws {
		step, err := UnmarshalStep(raw)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		steps[i] = step
	}
	return steps, nil
}

func unmarshalOptionalExpr(raw json.RawMessage) (Expr, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return UnmarshalExpr(raw)
}

func validUpdateOp(op string) bool {
	switch op {
	case UpdateIncrement, UpdateDecrement, UpdateAppend, UpdateRemoveLast,
		UpdateRemoveMatching, UpdateToggle, UpdateMerge, UpdateReplaceAt,
		UpdateInsertAt, UpdateSplice:
		return true
	}
	return false
}
