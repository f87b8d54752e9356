package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// FieldType names the declared type of a state field.
type FieldType string

const (
	FieldNumber  FieldType = "number"
	FieldString  FieldType = "string"
	FieldBoolean FieldType = "boolean"
	FieldList    FieldType = "list"
	FieldObject  FieldType = "object"
)

// ValidFieldTypes defines the allowed type strings for state fields.
var ValidFieldTypes = map[FieldType]bool{
	FieldNumber:  true,
	FieldString:  true,
	FieldBoolean: true,
	FieldList:    true,
	FieldObject:  true,
}

// StateField declares a named, typed state slot.
//
// Initial is either a literal value or a deferred expression
// ({"initial":{"$expr":<expr>}}) resolved exactly once at store
// construction. When both are absent the field starts at its type's zero
// value.
type StateField struct {
	Type        FieldType
	Initial     Value
	InitialExpr Expr
}

// ZeroValue returns the type's zero value: 0, "", false, [], {}.
func (f StateField) ZeroValue() Value {
	switch f.Type {
	case FieldNumber:
		return Number(0)
	case FieldString:
		return String("")
	case FieldBoolean:
		return Bool(false)
	case FieldList:
		return NewArray()
	case FieldObject:
		return NewObject()
	default:
		return Null{}
	}
}

// UnmarshalJSON decodes {"type":...,"initial":...} distinguishing literal
// initials from deferred {"$expr":...} initials.
func (f *StateField) UnmarshalJSON(data []byte) error {
	var raw struct {
		Type    FieldType       `json:"type"`
		Initial json.RawMessage `json:"initial,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	f.Type = raw.Type

	if len(raw.Initial) == 0 {
		return nil
	}

	// Deferred initial: {"$expr": <expression>}
	var deferred struct {
		Expr json.RawMessage `json:"$expr"`
	}
	if raw.Initial[0] == '{' {
		if err := json.Unmarshal(raw.Initial, &deferred); err == nil && len(deferred.Expr) > 0 {
			expr, err := UnmarshalExpr(deferred.Expr)
			if err != nil {
				return fmt.Errorf("deferred initial: %w", err)
			}
			f.InitialExpr = expr
			return nil
		}
	}

	v, err := UnmarshalValue(raw.Initial)
	if err != nil {
		return fmt.Errorf("initial value: %w", err)
	}
	f.Initial = v
	return nil
}

// MarshalJSON renders the field back to its wire form.
func (f StateField) MarshalJSON() ([]byte, error) {
	out := map[string]json.RawMessage{
		"type": mustMarshalString(string(f.Type)),
	}
	switch {
	case f.InitialExpr != nil:
		exprBytes, err := MarshalExpr(f.InitialExpr)
		if err != nil {
			return nil, err
		}
		wrapped, err := json.Marshal(map[string]json.RawMessage{"$expr": exprBytes})
		if err != nil {
			return nil, err
		}
		out["initial"] = wrapped
	case f.Initial != nil:
		valBytes, err := MarshalValue(f.Initial)
		if err != nil {
			return nil, err
		}
		out["initial"] = valBytes
	}
	return json.Marshal(out)
}

// Program is the compiled document handed to the core: typed state fields,
// named actions, and an opaque view section consumed only by the host
// renderer.
type Program struct {
	State   map[string]StateField
	Actions map[string][]Step
	View    json.RawMessage
}

// StateNames returns field names in a deterministic order. JSON objects
// carry no order, so store initialization iterates fields by sorted name.
func (p *Program) StateNames() []string {
	names := make([]string, 0, len(p.State))
	for name := range p.State {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ActionNames returns action names in sorted order.
func (p *Program) ActionNames() []string {
	names := make([]string, 0, len(p.Actions))
	for name := range p.Actions {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Action returns the step list for a named action, or false if absent.
func (p *Program) Action(name string) ([]Step, bool) {
	steps, ok := p.Actions[name]
	return steps, ok
}

// UnmarshalProgram decodes a compiled program document.
func UnmarshalProgram(data []byte) (*Program, error) {
	var raw struct {
		State   map[string]json.RawMessage   `json:"state"`
		Actions map[string][]json.RawMessage `json:"actions"`
		View    json.RawMessage              `json:"view,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("program document: %w", err)
	}

	p := &Program{
		State:   make(map[string]StateField, len(raw.State)),
		Actions: make(map[string][]Step, len(raw.Actions)),
		View:    raw.View,
	}

	for name, fieldRaw := range raw.State {
		var field StateField
		if err := json.Unmarshal(fieldRaw, &field); err != nil {
			return nil, fmt.Errorf("state field %q: %w", name, err)
		}
		p.State[name] = field
	}

	for name, stepsRaw := range raw.Actions {
		steps, err := unmarshalSteps(stepsRaw)
		if err != nil {
			return nil, fmt.Errorf("action %q: %w", name, err)
		}
		p.Actions[name] = steps
	}

	return p, nil
}

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks the program against schema rules.
// Returns all errors (not fail-fast) for better developer experience.
func (p *Program) Validate() []ValidationError {
	var errs []ValidationError

	for _, name := range p.StateNames() {
		field := p.State[name]
		if !ValidFieldTypes[field.Type] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("state.%s.type", name),
				Message: fmt.Sprintf("invalid type %q, must be one of: number, string, boolean, list, object", field.Type),
			})
		}
		if field.Initial != nil && field.InitialExpr != nil {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("state.%s.initial", name),
				Message: "initial cannot be both a literal and a deferred expression",
			})
		}
		if ForbiddenSegment(name) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("state.%s", name),
				Message: fmt.Sprintf("field name %q is not allowed", name),
			})
		}
	}

	for _, name := range p.ActionNames() {
		if len(p.Actions[name]) == 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("actions.%s", name),
				Message: "action requires at least one step",
			})
		}
		errs = append(errs, validateSteps(fmt.Sprintf("actions.%s", name), p.Actions[name], p.State)...)
	}

	return errs
}

// validateSteps checks that step targets reference declared state fields.
func validateSteps(prefix string, steps []Step, state map[string]StateField) []ValidationError {
	var errs []ValidationError

	checkTarget := func(i int, target string) {
		if _, ok := state[target]; !ok {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d].target", prefix, i),
				Message: fmt.Sprintf("unknown state field %q", target),
			})
		}
	}

	for i, step := range steps {
		switch s := step.(type) {
		case *SetStep:
			checkTarget(i, s.Target)
		case *SetPathStep:
			checkTarget(i, s.Target)
			if s.Path.Forbidden() {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%s[%d].path", prefix, i),
					Message: "path contains a disallowed segment",
				})
			}
		case *UpdateStep:
			checkTarget(i, s.Target)
		case *IfStep:
			errs = append(errs, validateSteps(fmt.Sprintf("%s[%d].then", prefix, i), s.Then, state)...)
			errs = append(errs, validateSteps(fmt.Sprintf("%s[%d].else", prefix, i), s.Else, state)...)
		case *DelayStep:
			errs = append(errs, validateSteps(fmt.Sprintf("%s[%d].then", prefix, i), s.Then, state)...)
		case *IntervalStep:
			if s.Handle.Target != "" {
				checkTarget(i, s.Handle.Target)
			}
			errs = append(errs, validateSteps(fmt.Sprintf("%s[%d].then", prefix, i), s.Then, state)...)
		case *FetchStep:
			errs = append(errs, validateSteps(fmt.Sprintf("%s[%d].onSuccess", prefix, i), s.OnSuccess, state)...)
			errs = append(errs, validateSteps(fmt.Sprintf("%s[%d].onError", prefix, i), s.OnError, state)...)
		}
	}

	return errs
}
