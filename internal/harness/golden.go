package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/weftui/weft/internal/ir"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// Serialization uses canonical JSON so snapshots are deterministic.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
	State        interface{}  `json:"state"`
}

// toValue converts the snapshot to an ir value tree so canonical JSON
// serialization (sorted keys, fixed number formatting) applies.
func (s *TraceSnapshot) toValue() (ir.Value, error) {
	traceList := make([]interface{}, len(s.Trace))
	for i, event := range s.Trace {
		eventMap := map[string]interface{}{
			"seq":   event.Seq,
			"field": event.Field,
			"value": event.Value,
		}
		if event.Path != "" {
			eventMap["path"] = event.Path
		}
		traceList[i] = eventMap
	}

	return ir.FromGo(map[string]interface{}{
		"scenario_name": s.ScenarioName,
		"trace":         traceList,
		"state":         s.State,
	})
}

// RunWithGolden executes a scenario and compares its trace snapshot
// against a golden file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if scenario execution fails; trace mismatches fail
// the test through goldie.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares a result's trace snapshot against the golden
// file for the given scenario name.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
		State:        result.State,
	}

	value, err := snapshot.toValue()
	if err != nil {
		return err
	}
	traceJSON, err := ir.MarshalCanonical(value)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
