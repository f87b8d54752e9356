package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"unicode/utf16"
)

// Value is a sealed interface representing the runtime value kinds of a
// program: null, undefined, number, string, bool, array, object.
// Only the types in this file implement it.
//
// Containers (Array, Object) always travel as pointers. A mutation along a
// path allocates fresh containers for every ancestor while siblings keep
// their prior pointer, so subscribers can compare sub-values with Same
// instead of deep equality.
type Value interface {
	value() // Sealed - only these types implement it
}

// Null represents an explicit JSON null. Null is a value, not a miss:
// resolving a path through a Null short-circuits to Null, never Undefined.
type Null struct{}

func (Null) value() {}

// Undefined represents an absent value: a missing field, a missing path
// segment, or an unsupported operation. Undefined never appears in a
// program document; it exists only as an evaluation result.
type Undefined struct{}

func (Undefined) value() {}

// Number represents a numeric value. Numbers are IEEE-754 float64:
// division by zero yields an infinity, not an error.
type Number float64

func (Number) value() {}

// String represents a string value.
type String string

func (String) value() {}

// Bool represents a boolean value.
type Bool bool

func (Bool) value() {}

// Array represents an ordered sequence. Always used as *Array so that
// identity comparison (Same) is pointer comparison.
type Array struct {
	Items []Value
}

func (*Array) value() {}

// Object represents a keyed container. Always used as *Object so that
// identity comparison (Same) is pointer comparison.
type Object struct {
	Entries map[string]Value
}

func (*Object) value() {}

// NewArray creates an *Array from values.
func NewArray(items ...Value) *Array {
	return &Array{Items: items}
}

// NewObject creates an empty *Object.
func NewObject() *Object {
	return &Object{Entries: map[string]Value{}}
}

// Entry is a key-value pair for typed Object construction in tests and
// programmatic callers.
type Entry struct {
	Key   string
	Value Value
}

// NewObjectFromEntries creates an *Object from typed key-value pairs.
func NewObjectFromEntries(entries ...Entry) *Object {
	obj := &Object{Entries: make(map[string]Value, len(entries))}
	for _, e := range entries {
		obj.Entries[e.Key] = e.Value
	}
	return obj
}

// E is a shorthand for Entry for ergonomic construction.
// Example: NewObjectFromEntries(E("liked", Bool(false)), E("id", Number(1)))
func E(key string, value Value) Entry {
	return Entry{Key: key, Value: value}
}

// Get returns the value for key, or Undefined if absent.
func (o *Object) Get(key string) Value {
	if o == nil || o.Entries == nil {
		return Undefined{}
	}
	if v, ok := o.Entries[key]; ok {
		return v
	}
	return Undefined{}
}

// Has reports whether key is present.
func (o *Object) Has(key string) bool {
	if o == nil {
		return false
	}
	_, ok := o.Entries[key]
	return ok
}

// CloneShallow copies the object one level deep: a fresh Entries map whose
// values keep their prior identity. This is the copy-on-path building block
// for structural sharing.
func (o *Object) CloneShallow() *Object {
	clone := &Object{Entries: make(map[string]Value, len(o.Entries))}
	for k, v := range o.Entries {
		clone.Entries[k] = v
	}
	return clone
}

// CloneShallow copies the array one level deep: a fresh Items slice whose
// elements keep their prior identity.
func (a *Array) CloneShallow() *Array {
	clone := &Array{Items: make([]Value, len(a.Items))}
	copy(clone.Items, a.Items)
	return clone
}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings uses UTF-8 byte order which differs for supplementary
// characters, so keys are compared as UTF-16 code units.
func (o *Object) SortedKeys() []string {
	keys := make([]string, 0, len(o.Entries))
	for k := range o.Entries {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering as
// required by RFC 8785 (Canonical JSON).
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}

// Same reports whether two values share identity. Containers compare by
// pointer; scalars compare by value. This is the comparison used by
// path-level subscribers to decide whether a sub-value actually changed.
func Same(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		if b == nil {
			return true
		}
		_, ok := b.(Undefined)
		return ok
	case Undefined:
		if b == nil {
			return true
		}
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case *Array:
		bv, ok := b.(*Array)
		return ok && av == bv
	case *Object:
		bv, ok := b.(*Object)
		return ok && av == bv
	default:
		return false
	}
}

// Equal reports deep structural equality. Used by comparison operators and
// by the remove-matching structural update, never by subscribers (those use
// Same).
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Undefined:
		_, ok := b.(Undefined)
		return ok
	case Null:
		_, ok := b.(Null)
		return ok
	case Number:
		bv, ok := b.(Number)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case *Array:
		bv, ok := b.(*Array)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equal(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Object:
		bv, ok := b.(*Object)
		if !ok || len(av.Entries) != len(bv.Entries) {
			return false
		}
		for k, v := range av.Entries {
			other, present := bv.Entries[k]
			if !present || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Truthy reports the boolean coercion of a value: false for null,
// undefined, false, zero, NaN, and the empty string; true otherwise.
// Containers are always truthy, even when empty.
func Truthy(v Value) bool {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return false
	case Bool:
		return bool(val)
	case Number:
		return val != 0 && !math.IsNaN(float64(val))
	case String:
		return val != ""
	default:
		return true
	}
}

// Render returns the text a value contributes to string concatenation.
// Null and undefined render empty so a half-populated template shows a
// blank, not the word "null". Containers render as JSON.
func Render(v Value) string {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return ""
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Number:
		return FormatNumber(float64(val))
	case String:
		return string(val)
	default:
		data, err := MarshalValue(val)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// FormatNumber renders a float the way JSON does: integral values carry
// no decimal point, non-finite values render as their names.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	default:
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
}

// IsUndefined reports whether v is Undefined (or a nil interface).
func IsUndefined(v Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.(Undefined)
	return ok
}

// FromGo converts a decoded JSON/YAML value (nil, bool, float64, int,
// string, []any, map[string]any) into a Value. Unsupported Go types
// return an error.
func FromGo(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(val), nil
	case string:
		return String(val), nil
	case float64:
		return Number(val), nil
	case int:
		return Number(val), nil
	case int64:
		return Number(val), nil
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return nil, fmt.Errorf("number out of range: %s", val)
		}
		return Number(f), nil
	case []any:
		arr := &Array{Items: make([]Value, len(val))}
		for i, elem := range val {
			item, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			arr.Items[i] = item
		}
		return arr, nil
	case map[string]any:
		obj := &Object{Entries: make(map[string]Value, len(val))}
		for k, elem := range val {
			item, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			obj.Entries[k] = item
		}
		return obj, nil
	case map[any]any:
		// yaml.v3 produces map[string]any for string keys, but guard anyway.
		obj := &Object{Entries: make(map[string]Value, len(val))}
		for k, elem := range val {
			key, ok := k.(string)
			if !ok {
				return nil, fmt.Errorf("object key %v is not a string", k)
			}
			item, err := FromGo(elem)
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", key, err)
			}
			obj.Entries[key] = item
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Value into plain Go values for JSON/YAML encoding.
// Undefined converts to nil, matching how hosts serialize absent values.
func ToGo(v Value) any {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return nil
	case Number:
		return float64(val)
	case String:
		return string(val)
	case Bool:
		return bool(val)
	case *Array:
		out := make([]any, len(val.Items))
		for i, item := range val.Items {
			out[i] = ToGo(item)
		}
		return out
	case *Object:
		out := make(map[string]any, len(val.Entries))
		for k, item := range val.Entries {
			out[k] = ToGo(item)
		}
		return out
	default:
		return nil
	}
}

// UnmarshalValue decodes JSON bytes into a Value.
// Numbers decode as float64 (the document format carries IEEE-754 numbers).
func UnmarshalValue(data []byte) (Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty JSON value")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	return FromGo(raw)
}

// MarshalValue marshals a Value to JSON bytes with RFC 8785 key order.
// Undefined marshals as null; hosts cannot observe the difference on the
// wire, only through the evaluator.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case nil, Undefined, Null:
		return []byte("null"), nil
	case Number:
		return marshalNumber(float64(val))
	case String:
		return json.Marshal(string(val))
	case Bool:
		return json.Marshal(bool(val))
	case *Array:
		return marshalArray(val)
	case *Object:
		return marshalObject(val)
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// marshalNumber renders a float64 the way encoding/json does, except that
// non-finite values (legal at runtime, illegal in JSON) render as null.
func marshalNumber(f float64) ([]byte, error) {
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

func marshalArray(arr *Array) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr.Items {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := MarshalValue(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalObject(obj *Object) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for i, k := range obj.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := MarshalValue(obj.Entries[k])
		if err != nil {
			return nil, fmt.Errorf("marshal value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
