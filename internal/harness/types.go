package harness

import (
	"github.com/roach88/resultsets/internal/canonical"
)

// Operation names one collection mode.
type Operation string

const (
	OpAllOrPartial    Operation = "all_or_partial"
	OpCompletionOrder Operation = "completion_order"
	OpStream          Operation = "stream"
)

// Operations lists the modes in trace order.
var Operations = []Operation{OpAllOrPartial, OpCompletionOrder, OpStream}

// OperationResult is what one collection mode produced.
type OperationResult struct {
	Operation Operation `json:"operation"`

	// Values holds first-column values of successful queries, sorted.
	Values []string `json:"values"`

	// Failures counts failed queries.
	Failures int `json:"failures"`

	// Errors holds the failure messages, sorted.
	Errors []string `json:"errors,omitempty"`

	// Terminated is set when a terminating stream stopped on a failure.
	// Values, Errors and Delivered of a terminated stream depend on
	// timing and are left out of the trace.
	Terminated bool `json:"terminated,omitempty"`

	// Delivered is the number of outputs that carried a result. For the
	// completion-order mode this must equal the number of keys.
	Delivered int `json:"delivered"`

	Pass     bool     `json:"pass"`
	Mismatch []string `json:"mismatch,omitempty"`
}

// CanonicalValue implements canonical.Valuer.
func (r OperationResult) CanonicalValue() any {
	m := map[string]any{
		"operation": string(r.Operation),
		"failures":  r.Failures,
		"pass":      r.Pass,
	}
	if r.Terminated {
		m["terminated"] = true
	} else {
		m["delivered"] = r.Delivered
		m["values"] = nonNil(r.Values)
		if len(r.Errors) > 0 {
			m["errors"] = r.Errors
		}
	}
	if len(r.Mismatch) > 0 {
		m["mismatch"] = r.Mismatch
	}
	return m
}

// Result is the outcome of a scenario run.
type Result struct {
	Scenario string `json:"scenario"`
	Policy   string `json:"policy"`
	Keys     int    `json:"keys"`

	// Pass is true when every operation met the expectation.
	Pass bool `json:"pass"`

	Operations []OperationResult `json:"operations"`
}

// Operation returns the result for op, or nil.
func (r *Result) Operation(op Operation) *OperationResult {
	for i := range r.Operations {
		if r.Operations[i].Operation == op {
			return &r.Operations[i]
		}
	}
	return nil
}

// Errors returns every mismatch, prefixed by operation.
func (r *Result) Errors() []string {
	var errs []string
	for _, op := range r.Operations {
		for _, m := range op.Mismatch {
			errs = append(errs, string(op.Operation)+": "+m)
		}
	}
	return errs
}

// CanonicalValue implements canonical.Valuer.
func (r *Result) CanonicalValue() any {
	ops := make([]any, len(r.Operations))
	for i, op := range r.Operations {
		ops[i] = op
	}
	return map[string]any{
		"scenario":   r.Scenario,
		"policy":     r.Policy,
		"keys":       r.Keys,
		"pass":       r.Pass,
		"operations": ops,
	}
}

// Trace returns the canonical JSON snapshot of r, newline terminated.
func (r *Result) Trace() ([]byte, error) {
	data, err := canonical.Marshal(r)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
