package store

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/reactive"
)

// ErrUnknownField is returned when an operation names a state field the
// store does not hold.
var ErrUnknownField = errors.New("unknown state field")

// ErrUndefinedWrite is returned when a write would store undefined.
// Undefined exists only as a read result; stored state holds null instead.
var ErrUndefinedWrite = errors.New("cannot store undefined")

// field is one named state cell. The signal carries the current ir.Value
// and drives effect re-runs; subs are the explicit path subscriptions.
type field struct {
	typ  ir.FieldType
	sig  *reactive.Signal
	subs []*subscription
}

// Store holds the named, typed state fields of a running program.
//
// Reads inside an effect register the field as a dependency. Writes go
// through Set/SetPath, which stamp a logical seq, append to the journal
// when one is attached, update the field's signal, and then fire the
// subscriptions: whole-field subscribers on every write, path
// subscribers only when their resolved value changed identity.
//
// A Store is not safe for concurrent use; like the reactive runtime it
// belongs to, all access happens on the engine's single logical thread.
type Store struct {
	rt     *reactive.Runtime
	clock  *Clock
	fields map[string]*field

	journal     *Journal
	programHash string
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithJournal attaches a mutation journal. Every successful write is
// appended before subscribers observe it.
func WithJournal(j *Journal) Option {
	return func(s *Store) {
		s.journal = j
	}
}

// WithClock overrides the store's logical clock. Replay uses this to
// resume sequencing after the last journaled mutation.
func WithClock(c *Clock) Option {
	return func(s *Store) {
		s.clock = c
	}
}

// WithProgramHash stamps journaled mutations with the hash of the program
// document they were produced under.
func WithProgramHash(hash string) Option {
	return func(s *Store) {
		s.programHash = hash
	}
}

// WithLogger sets the store's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store bound to a reactive runtime.
func New(rt *reactive.Runtime, opts ...Option) *Store {
	s := &Store{
		rt:     rt,
		clock:  NewClock(),
		fields: make(map[string]*field),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Define registers a named field with its declared type and initial value.
// Defining the same name twice is an error.
func (s *Store) Define(name string, typ ir.FieldType, initial ir.Value) error {
	if _, exists := s.fields[name]; exists {
		return fmt.Errorf("define %q: field already defined", name)
	}
	if ir.IsUndefined(initial) {
		return fmt.Errorf("define %q: %w", name, ErrUndefinedWrite)
	}
	s.fields[name] = &field{typ: typ, sig: s.rt.NewSignal(initial)}
	return nil
}

// Has reports whether a field is defined.
func (s *Store) Has(name string) bool {
	_, ok := s.fields[name]
	return ok
}

// Names returns the defined field names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.fields))
	for name := range s.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Type returns a field's declared type.
func (s *Store) Type(name string) (ir.FieldType, error) {
	f, ok := s.fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f.typ, nil
}

// Get returns a field's current value. Inside an effect run the field is
// registered as a dependency.
func (s *Store) Get(name string) (ir.Value, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f.sig.Get().(ir.Value), nil
}

// Peek returns a field's current value without registering a dependency.
func (s *Store) Peek(name string) (ir.Value, error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	return f.sig.Peek().(ir.Value), nil
}

// GetPath returns the value at path inside a field, following the resolve
// rules: null short-circuits to null, anything missing or mismatched
// degrades to undefined. The whole field is the reactive dependency.
func (s *Store) GetPath(name string, path ir.Path) (ir.Value, error) {
	v, err := s.Get(name)
	if err != nil {
		return nil, err
	}
	return path.Resolve(v), nil
}

// Set replaces a field's entire value. Dependents re-run unconditionally;
// path subscriptions fire only if their resolved value changed identity.
func (s *Store) Set(name string, v ir.Value) error {
	f, ok := s.fields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if ir.IsUndefined(v) {
		return fmt.Errorf("set %q: %w", name, ErrUndefinedWrite)
	}
	return s.commit(name, f, nil, v)
}

// SetPath replaces the subtree at path inside a field, rebuilding the
// containers along the path and sharing everything else with the prior
// value. Writing undefined at a path stores null.
func (s *Store) SetPath(name string, path ir.Path, v ir.Value) error {
	if path.IsEmpty() {
		return s.Set(name, v)
	}
	f, ok := s.fields[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if err := path.Validate(); err != nil {
		return fmt.Errorf("set path on %q: %w", name, err)
	}
	if ir.IsUndefined(v) {
		v = ir.Null{}
	}
	old := f.sig.Peek().(ir.Value)
	next, err := setAtPath(old, path, v)
	if err != nil {
		return fmt.Errorf("set path on %q: %w", name, err)
	}
	return s.commit(name, f, path, next)
}

// commit runs the write pipeline shared by Set and SetPath: stamp a seq,
// journal, update the signal, fire path subscriptions. The journaled path
// and value describe the mutation as requested; the signal always receives
// the rebuilt whole-field value.
func (s *Store) commit(name string, f *field, path ir.Path, next ir.Value) error {
	prev := f.sig.Peek().(ir.Value)
	seq := s.clock.Next()

	if s.journal != nil {
		leaf := journalForm(path.Resolve(next))
		id, err := ir.MutationID(name, path, leaf, seq)
		if err != nil {
			return fmt.Errorf("journal %q: %w", name, err)
		}
		mut := Mutation{
			ID:          id,
			Seq:         seq,
			Field:       name,
			Path:        path,
			Value:       leaf,
			ProgramHash: s.programHash,
		}
		if err := s.journal.Append(mut); err != nil {
			return fmt.Errorf("journal %q: %w", name, err)
		}
	}

	f.sig.Set(next)
	f.notify(prev, next)
	return nil
}

// journalForm rewrites non-finite numbers to null for the journal row.
// Infinity and NaN are legal runtime values (division by zero produces
// them) but have no JSON form, so the journal records them the way a host
// would see them on the wire. Containers without non-finite leaves are
// returned unchanged.
func journalForm(v ir.Value) ir.Value {
	switch val := v.(type) {
	case ir.Number:
		f := float64(val)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return ir.Null{}
		}
	case *ir.Array:
		var out *ir.Array
		for i, elem := range val.Items {
			enc := journalForm(elem)
			if out == nil {
				if ir.Same(enc, elem) {
					continue
				}
				out = ir.NewArray()
				out.Items = append(out.Items, val.Items[:i]...)
			}
			out.Items = append(out.Items, enc)
		}
		if out != nil {
			return out
		}
	case *ir.Object:
		var out *ir.Object
		for k, elem := range val.Entries {
			enc := journalForm(elem)
			if ir.Same(enc, elem) {
				continue
			}
			if out == nil {
				out = ir.NewObject()
				for name, prior := range val.Entries {
					out.Entries[name] = prior
				}
			}
			out.Entries[k] = enc
		}
		if out != nil {
			return out
		}
	}
	return v
}

// Snapshot returns an object mapping every field name to its current
// value. Reads do not register dependencies.
func (s *Store) Snapshot() *ir.Object {
	snap := ir.NewObject()
	for name, f := range s.fields {
		snap.Entries[name] = f.sig.Peek().(ir.Value)
	}
	return snap
}
