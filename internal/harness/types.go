package harness

import "github.com/roach88/querier/internal/store"

// TraceEvent records what one case produced.
type TraceEvent struct {
	Seq       int64       `json:"seq"`
	Case      string      `json:"case"`
	RequestID string      `json:"request_id"`
	SQL       string      `json:"sql,omitempty"`
	Params    []any       `json:"params,omitempty"`
	Rows      []store.Row `json:"rows,omitempty"`
	Error     string      `json:"error,omitempty"`
	Layer     string      `json:"layer,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every case met its expectations.
	Pass bool `json:"pass"`

	// Trace holds one event per case, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a case event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
