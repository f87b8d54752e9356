package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/weftui/weft/internal/engine"
	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/store"
	"github.com/weftui/weft/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh engine with an in-memory journal,
// the fake scheduler, and fixed token generators, so traces are
// reproducible: same scenario, same trace, byte for byte.
//
// Execution flow:
//  1. Load and validate the program document
//  2. Build the engine with deterministic helpers
//  3. Run steps (dispatch actions, advance virtual time)
//  4. Collect the mutation trace and final state
//  5. Evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	doc, err := os.ReadFile(scenario.Program)
	if err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}
	program, err := ir.UnmarshalProgram(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}

	journal, err := store.OpenJournal(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer journal.Close()

	sched := testutil.NewFakeScheduler()

	eng, err := engine.New(program,
		engine.WithJournal(journal),
		engine.WithProgramHash(ir.ProgramHash(doc)),
		engine.WithScheduler(sched),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		engine.WithExecutorOptions(engine.WithTokens(testutil.NewPrefixTokenGenerator("timer"))),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build engine: %w", err)
	}
	defer eng.Stop()

	ctx := context.Background()
	for i, step := range scenario.Steps {
		if step.Dispatch != "" {
			var payload ir.Value
			if step.Payload != nil {
				payload, err = ir.FromGo(step.Payload)
				if err != nil {
					return nil, fmt.Errorf("steps[%d]: payload: %w", i, err)
				}
			}
			if err := eng.Dispatch(ctx, step.Dispatch, payload); err != nil {
				return nil, fmt.Errorf("steps[%d]: dispatch %q: %w", i, step.Dispatch, err)
			}
		} else {
			// Validated at load time.
			d, err := time.ParseDuration(step.Advance)
			if err != nil {
				return nil, fmt.Errorf("steps[%d]: advance: %w", i, err)
			}
			sched.Advance(d)
		}
		eng.Drain()
	}

	result := NewResult()

	mutations, err := journal.Mutations()
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	for _, m := range mutations {
		result.Trace = append(result.Trace, TraceEvent{
			Seq:   m.Seq,
			Field: m.Field,
			Path:  m.Path.String(),
			Value: ir.ToGo(m.Value),
		})
	}

	if snapshot, ok := ir.ToGo(eng.Store().Snapshot()).(map[string]interface{}); ok {
		result.State = snapshot
	}

	EvaluateAssertions(result, scenario.Assertions, eng.Store())
	return result, nil
}
