package harness

import "github.com/roach88/ctorder/internal/ir"

// StepResult is what one step produced.
type StepResult struct {
	Index  int    `json:"index"`
	Op     string `json:"op"`
	Output string `json:"output"`
	Error  string `json:"error,omitempty"` // error code, empty on success
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Steps holds one entry per scenario step.
	Steps []StepResult `json:"steps"`

	// Trace holds every lifecycle event in seq order.
	Trace []ir.Event `json:"trace"`

	// Errors lists failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Steps:  []StepResult{},
		Trace:  []ir.Event{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Output concatenates the output of every step.
func (r *Result) Output() string {
	out := ""
	for _, s := range r.Steps {
		out += s.Output
	}
	return out
}
