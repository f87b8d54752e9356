package store

import (
	"fmt"
	"slices"

	"github.com/weftui/weft/internal/ir"
)

// subscription is one registered path observer on a field. An empty path
// observes the whole field.
type subscription struct {
	path ir.Path
	fn   func(prev, next ir.Value)
}

// Subscribe registers fn to run after every set or setPath on the field,
// including writes of an equal value; like the field's signal, whole-field
// subscribers see every write. It returns an unsubscribe function; calling
// it more than once is harmless.
func (s *Store) Subscribe(name string, fn func(prev, next ir.Value)) (func(), error) {
	return s.SubscribeToPath(name, nil, fn)
}

// SubscribeToPath registers fn to run after writes to the field that
// change the value resolved at path. Change detection is by identity:
// structural sharing guarantees untouched subtrees keep their identity
// across writes, so subscribers on sibling paths stay quiet. An empty
// path behaves like Subscribe and fires on every write.
func (s *Store) SubscribeToPath(name string, path ir.Path, fn func(prev, next ir.Value)) (func(), error) {
	f, ok := s.fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if err := path.Validate(); err != nil {
		return nil, fmt.Errorf("subscribe to %q: %w", name, err)
	}

	sub := &subscription{path: path, fn: fn}
	f.subs = append(f.subs, sub)

	return func() {
		if i := slices.Index(f.subs, sub); i != -1 {
			f.subs = slices.Delete(f.subs, i, i+1)
		}
	}, nil
}

// notify fires the field's subscriptions in registration order. The slice
// is cloned first because a callback may unsubscribe itself or register
// new subscriptions. Whole-field subscriptions fire on every write;
// identity comparison applies only to path subscriptions, where structural
// sharing makes it meaningful.
func (f *field) notify(prev, next ir.Value) {
	for _, sub := range slices.Clone(f.subs) {
		if sub.path.IsEmpty() {
			sub.fn(prev, next)
			continue
		}
		prevAt := sub.path.Resolve(prev)
		nextAt := sub.path.Resolve(next)
		if !ir.Same(prevAt, nextAt) {
			sub.fn(prevAt, nextAt)
		}
	}
}
