package harness

import (
	"fmt"
	"strings"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			target := event.Field
			if event.Path != "" {
				target = event.Field + "." + event.Path
			}
			fmt.Fprintf(&buf, "  [%d] %s = %v\n", event.Seq, target, event.Value)
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion against the result, recording
// each failure. Assertions never abort the scenario; all failures are
// reported together.
func EvaluateAssertions(result *Result, assertions []Assertion, st *store.Store) {
	for _, assertion := range assertions {
		var err error
		switch assertion.Type {
		case AssertState:
			err = assertState(st, assertion, result.Trace)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		default:
			err = fmt.Errorf("unknown assertion type %q", assertion.Type)
		}
		if err != nil {
			result.AddError(err.Error())
		}
	}
}

// assertState reads a field (optionally at a path) from the final store
// and compares it structurally against the expected value.
func assertState(st *store.Store, assertion Assertion, trace []TraceEvent) error {
	actual, err := st.Peek(assertion.Field)
	if err != nil {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("field %q present", assertion.Field),
			Actual:   err.Error(),
			Trace:    trace,
		}
	}
	if assertion.Path != "" {
		actual = ir.ParsePath(assertion.Path).Resolve(actual)
	}

	expected, err := ir.FromGo(assertion.Value)
	if err != nil {
		return fmt.Errorf("state assertion for %q: bad expected value: %w", assertion.Field, err)
	}

	if !ir.Equal(expected, actual) {
		target := assertion.Field
		if assertion.Path != "" {
			target = assertion.Field + "." + assertion.Path
		}
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("%s = %s", target, renderForDiff(expected)),
			Actual:   renderForDiff(actual),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceContains checks that some mutation touched the field,
// optionally with a specific written value.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	expected, err := ir.FromGo(assertion.Value)
	if err != nil {
		return fmt.Errorf("trace_contains assertion for %q: bad expected value: %w", assertion.Field, err)
	}

	for _, event := range trace {
		if event.Field != assertion.Field {
			continue
		}
		if assertion.Value == nil {
			return nil // Any mutation of the field satisfies the assertion
		}
		actual, err := ir.FromGo(event.Value)
		if err != nil {
			continue
		}
		if ir.Equal(expected, actual) {
			return nil
		}
	}

	expectedDesc := fmt.Sprintf("a mutation of %q", assertion.Field)
	if assertion.Value != nil {
		expectedDesc = fmt.Sprintf("a mutation of %q to %s", assertion.Field, renderForDiff(expected))
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expectedDesc,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the fields' first mutations appear in the
// given order. Mutations don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)

	for i, event := range trace {
		for _, field := range assertion.Fields {
			if event.Field == field && positions[field] == 0 {
				positions[field] = i + 1 // 1-indexed for readability
			}
		}
	}

	for _, field := range assertion.Fields {
		if positions[field] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all fields mutated: %v", assertion.Fields),
				Actual:   fmt.Sprintf("no mutation of %q", field),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Fields); i++ {
		prev := assertion.Fields[i-1]
		curr := assertion.Fields[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("fields first mutated in order: %v", assertion.Fields),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks that the field was mutated exactly the
// specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Field == assertion.Field {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d mutation(s) of %q", assertion.Count, assertion.Field),
			Actual:   fmt.Sprintf("%d mutation(s)", count),
			Trace:    trace,
		}
	}

	return nil
}

// renderForDiff renders a value for assertion messages. JSON keeps
// containers readable; strings stay quoted to distinguish "1" from 1.
func renderForDiff(v ir.Value) string {
	if ir.IsUndefined(v) {
		return "undefined"
	}
	data, err := ir.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
