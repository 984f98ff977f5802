package ir

// StepKind identifies what a plan step initializes.
type StepKind string

const (
	// StepVirtualBase initializes a shared virtual base. Only the
	// most-derived object's plan contains these steps.
	StepVirtualBase StepKind = "virtual_base"

	// StepDirectBase initializes a non-virtual immediate base.
	StepDirectBase StepKind = "direct_base"

	// StepMember initializes a data member.
	StepMember StepKind = "member"

	// StepBody is not a plan step. It identifies a layer's own constructor
	// or destructor body in events and failures.
	StepBody StepKind = "body"
)

// Step is a single sub-object initialization in a Plan.
type Step struct {
	Kind   StepKind `json:"kind"`
	Target string   `json:"target"` // base class name or member name
	Class  string   `json:"class"`  // class (or scalar type) of the sub-object
}

// IsBase reports whether the step builds a base sub-object.
func (s Step) IsBase() bool {
	return s.Kind == StepVirtualBase || s.Kind == StepDirectBase
}

// Plan is the canonical construction order for one class.
//
// Steps is the construction order; Reverse() is the destruction order.
// References lists virtual bases the class shares but does not initialize
// itself (a layer plan of a class built as a base sub-object).
type Plan struct {
	Class       string   `json:"class"`
	MostDerived bool     `json:"most_derived"`
	Steps       []Step   `json:"steps"`
	References  []string `json:"references,omitempty"`
}

// Reverse returns the destruction order of the plan.
func (p Plan) Reverse() []Step {
	return ReverseSteps(p.Steps)
}

// ReverseSteps returns a reversed copy of steps.
// Used for destruction and for unwinding a completed prefix.
func ReverseSteps(steps []Step) []Step {
	out := make([]Step, len(steps))
	for i, s := range steps {
		out[len(steps)-1-i] = s
	}
	return out
}

// Lifecycle is the per-sub-object lifecycle tag.
type Lifecycle string

const (
	NotStarted Lifecycle = "not_started"
	InProgress Lifecycle = "in_progress"
	Completed  Lifecycle = "completed"
	TornDown   Lifecycle = "torn_down"
)
