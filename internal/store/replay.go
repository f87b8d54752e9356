package store

import (
	"fmt"

	"github.com/weftui/weft/internal/ir"
)

// Replay re-applies every mutation in the journal to the store in seq
// order and resumes the logical clock after the last one. Writes during
// replay bypass the attached journal, so replaying into a store that
// journals to the same file does not duplicate rows.
//
// Writes are staged per field before anything is committed: a mutation
// that cannot be applied fails the whole replay and leaves the store
// untouched. Committed fields update inside one reactive batch, so
// effects and subscribers observe a single transition per replayed
// field, not one per mutation.
//
// Mutations naming fields the store no longer defines are skipped with a
// warning; a journal may outlive the program revision that wrote it.
func (s *Store) Replay(j *Journal) error {
	muts, err := j.Mutations()
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	staged := make(map[string]ir.Value)
	var order []string
	var last int64
	for _, m := range muts {
		f, ok := s.fields[m.Field]
		if !ok {
			s.logger.Warn("replay: skipping mutation for unknown field",
				"field", m.Field, "seq", m.Seq)
			continue
		}
		base, ok := staged[m.Field]
		if !ok {
			base = f.sig.Peek().(ir.Value)
			order = append(order, m.Field)
		}
		next, err := setAtPath(base, m.Path, m.Value)
		if err != nil {
			return fmt.Errorf("replay seq %d on %q: %w", m.Seq, m.Field, err)
		}
		staged[m.Field] = next
		last = m.Seq
	}

	s.rt.Batch(func() {
		for _, name := range order {
			f := s.fields[name]
			prev := f.sig.Peek().(ir.Value)
			next := staged[name]
			f.sig.Set(next)
			f.notify(prev, next)
		}
	})

	if last > s.clock.Current() {
		s.clock = NewClockAt(last)
	}
	return nil
}
