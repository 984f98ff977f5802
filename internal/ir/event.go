package ir

// EventKind categorizes lifecycle trace events.
type EventKind string

const (
	EventLayerEnter   EventKind = "layer_enter"    // a layer starts constructing or destructing
	EventLayerExit    EventKind = "layer_exit"     // the layer is done
	EventStepBegin    EventKind = "step_begin"     // a sub-object is marked in_progress
	EventStepComplete EventKind = "step_complete"  // a sub-object is marked completed
	EventStepTornDown EventKind = "step_torn_down" // a sub-object is marked torn_down
	EventBodyEnter    EventKind = "body_enter"
	EventBodyExit     EventKind = "body_exit"
	EventDispatch     EventKind = "dispatch" // a virtual call was resolved
	EventOutput       EventKind = "output"   // a body emitted text
	EventFailure      EventKind = "failure"  // an initializer or body failed
	EventUnwind       EventKind = "unwind"   // a layer starts tearing down its completed prefix
)

// Phase values carried in Event.Detail for layer events.
const (
	PhaseConstruct = "construct"
	PhaseDestroy   = "destroy"
)

// Event is one entry of the lifecycle trace.
//
// Seq is a logical clock value; events of one run are totally ordered by it.
type Event struct {
	Seq    int64     `json:"seq"`
	RunID  string    `json:"run_id"`
	Kind   EventKind `json:"kind"`
	Object string    `json:"object"`         // path of the complete object
	Path   string    `json:"path"`           // path of the sub-object or layer
	Class  string    `json:"class"`          // class of the layer or sub-object
	Step   StepKind  `json:"step,omitempty"` // set on step and failure events
	Detail string    `json:"detail,omitempty"`
}
