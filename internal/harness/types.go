package harness

// TraceEvent is one journaled mutation, decoded to plain Go values for
// assertions and golden serialization.
type TraceEvent struct {
	Seq   int64       `json:"seq"`
	Field string      `json:"field"`
	Path  string      `json:"path,omitempty"`
	Value interface{} `json:"value"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	// Trace contains every journaled mutation in sequence order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the final store snapshot as plain Go values.
	State map[string]interface{} `json:"state"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
		State: make(map[string]interface{}),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
