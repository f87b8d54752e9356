package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a declarative runtime test.
// Scenarios dispatch actions against a program and assert on the final
// state and the resulting mutation trace.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are keyed by it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path to the program document (JSON), relative to the
	// scenario file location unless absolute.
	Program string `yaml:"program"`

	// Steps run in order against a fresh engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state and the mutation trace.
	// Supported types: state, trace_contains, trace_order, trace_count
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one scenario action: either a dispatch or a virtual time
// advance. Exactly one of Dispatch and Advance must be set.
type Step struct {
	// Dispatch names the action to dispatch.
	Dispatch string `yaml:"dispatch,omitempty"`

	// Payload is bound as the action's event value.
	Payload map[string]interface{} `yaml:"payload,omitempty"`

	// Advance moves the fake scheduler forward, firing due timers.
	// Duration syntax ("150ms", "2s").
	Advance string `yaml:"advance,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "state": read a field (optionally at a path) and compare
	// - "trace_contains": a mutation of the field (optionally with value) exists
	// - "trace_order": fields were first mutated in the given order
	// - "trace_count": the field was mutated exactly N times
	Type string `yaml:"type"`

	// Field is the state field name (all types except trace_order).
	Field string `yaml:"field,omitempty"`

	// Path optionally narrows a state assertion to a path inside the
	// field, in dotted form ("user.address.city", "todos.0").
	Path string `yaml:"path,omitempty"`

	// Value is the expected value (state, trace_contains).
	Value interface{} `yaml:"value,omitempty"`

	// Fields is the expected first-mutation order (trace_order).
	Fields []string `yaml:"fields,omitempty"`

	// Count is the expected number of mutations (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertState         = "state"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file. The program path
// is resolved relative to the scenario file. Returns an error if the
// file is malformed, contains unknown fields (typos), or is missing
// required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) {
		scenario.Program = filepath.Join(filepath.Dir(path), scenario.Program)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); os.IsNotExist(err) {
		return fmt.Errorf("program file not found: %s", s.Program)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch {
		case step.Dispatch != "" && step.Advance != "":
			return fmt.Errorf("steps[%d]: dispatch and advance are mutually exclusive", i)
		case step.Dispatch == "" && step.Advance == "":
			return fmt.Errorf("steps[%d]: either dispatch or advance is required", i)
		case step.Advance != "":
			if step.Payload != nil {
				return fmt.Errorf("steps[%d]: payload requires dispatch", i)
			}
			if _, err := time.ParseDuration(step.Advance); err != nil {
				return fmt.Errorf("steps[%d]: invalid advance duration %q", i, step.Advance)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for state", index)
		}
	case AssertTraceContains:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Fields) == 0 {
			return fmt.Errorf("assertions[%d]: fields list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
