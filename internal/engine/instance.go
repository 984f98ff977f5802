package engine

import (
	"sort"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

// Phase is the phase of a complete object.
type Phase string

const (
	PhaseConstructing Phase = "constructing"
	PhaseLive         Phase = "live"
	PhaseDestroying   Phase = "destroying"
	PhaseDestroyed    Phase = "destroyed"
	PhaseFailed       Phase = "failed" // construction failed and was unwound
)

// frame is one entry of the active-layer stack.
type frame struct {
	path  string
	class *model.ClassDescriptor
	arg   any
}

// Instance is the state of one complete object.
//
// Sub-objects are identified by path:
//
//	M          the complete object
//	M::L       a base sub-object of M
//	M::V       a virtual base; always directly under the complete object
//	M::L.l     member l of the L sub-object
//
// A class-type member is a complete object of its own, with its own
// Instance, stack and phase; its path is the member path.
//
// An Instance is not safe for concurrent use. Distinct instances share
// nothing but read-only descriptors and plans.
type Instance struct {
	runID string
	path  string
	class *model.ClassDescriptor
	phase Phase

	states map[string]ir.Lifecycle
	stack  []*frame

	// args holds the argument each layer was constructed with; destructor
	// bodies see it again.
	args map[string]any

	members map[string]*Instance
	values  map[string]any

	calls int // virtual calls currently running
}

func newInstance(runID, path string, class *model.ClassDescriptor) *Instance {
	return &Instance{
		runID:   runID,
		path:    path,
		class:   class,
		phase:   PhaseConstructing,
		states:  make(map[string]ir.Lifecycle),
		args:    make(map[string]any),
		members: make(map[string]*Instance),
		values:  make(map[string]any),
	}
}

// RunID returns the id shared by every event of this object's lifetime.
func (i *Instance) RunID() string { return i.runID }

// Path returns the path of the complete object.
func (i *Instance) Path() string { return i.path }

// Class returns the most-derived class.
func (i *Instance) Class() string { return i.class.Name() }

// Phase returns the object's phase.
func (i *Instance) Phase() Phase { return i.phase }

// State returns the lifecycle tag of a sub-object. Paths never touched
// are NotStarted.
func (i *Instance) State(path string) ir.Lifecycle {
	if s, ok := i.states[path]; ok {
		return s
	}
	return ir.NotStarted
}

// States returns every touched sub-object path with its tag. The states
// of nested member objects are not included; use Member.
func (i *Instance) States() map[string]ir.Lifecycle {
	out := make(map[string]ir.Lifecycle, len(i.states))
	for p, s := range i.states {
		out[p] = s
	}
	return out
}

// Paths returns the touched sub-object paths in sorted order.
func (i *Instance) Paths() []string {
	out := make([]string, 0, len(i.states))
	for p := range i.states {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Member returns the nested object of a class-type member.
func (i *Instance) Member(path string) (*Instance, bool) {
	m, ok := i.members[path]
	return m, ok
}

// Value returns the stored value of a scalar member.
func (i *Instance) Value(path string) (any, bool) {
	v, ok := i.values[path]
	return v, ok
}

// ActiveLayer returns the class of the innermost active layer, or "" when
// no constructor or destructor of the object is running.
func (i *Instance) ActiveLayer() string {
	if f := i.top(); f != nil {
		return f.class.Name()
	}
	return ""
}

// dynamicType is the class virtual calls and casts see: the innermost
// active layer, otherwise the most-derived class.
func (i *Instance) dynamicType() (*model.ClassDescriptor, string) {
	if f := i.top(); f != nil {
		return f.class, f.path
	}
	return i.class, i.path
}

func (i *Instance) top() *frame {
	if len(i.stack) == 0 {
		return nil
	}
	return i.stack[len(i.stack)-1]
}

func (i *Instance) setState(path string, s ir.Lifecycle) {
	i.states[path] = s
}

// usable reports the error for operations that need a live object.
func (i *Instance) usable() *RuntimeError {
	switch i.phase {
	case PhaseLive:
		return nil
	case PhaseDestroyed, PhaseDestroying:
		return newRuntimeError(ErrObjectDestroyed, i, i.class.Name(), "")
	default:
		return newRuntimeError(ErrNotConstructed, i, i.class.Name(), "")
	}
}
