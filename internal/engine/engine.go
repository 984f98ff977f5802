package engine

import (
	"context"
	"fmt"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
	"github.com/roach88/ctorder/internal/planner"
)

// Engine constructs, destroys and dispatches on objects of classes
// declared in a Registry.
//
// The engine itself holds no per-object state, so one Engine may drive
// many objects from many goroutines. Each Instance must be used by one
// goroutine at a time.
type Engine struct {
	registry *model.Registry
	planner  *planner.Planner
	clock    Sequencer
	runIDs   RunIDGenerator
	observer MultiObserver
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver adds observers. They receive events in registration order.
func WithObserver(obs ...Observer) Option {
	return func(e *Engine) {
		e.observer = append(e.observer, obs...)
	}
}

// WithRunIDs sets the run id generator. Default: UUIDv7Generator.
func WithRunIDs(gen RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = gen
	}
}

// WithClock sets the logical clock. Default: a new clock at 0.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithPlanner shares a plan cache between engines.
func WithPlanner(p *planner.Planner) Option {
	return func(e *Engine) {
		e.planner = p
	}
}

// New creates an Engine over the classes of registry.
func New(registry *model.Registry, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		planner:  planner.New(),
		clock:    NewClock(),
		runIDs:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request selects how a complete object is constructed.
type Request struct {
	// Constructor names the constructor of the most-derived class.
	// Empty selects the default constructor.
	Constructor string

	// Arg is the constructor's argument, visible to its bodies and
	// initializers through model.Context.Arg.
	Arg any

	// Args supplies explicit initializers for the most-derived layer. An
	// entry overrides the constructor's own initializer list, which in
	// turn overrides in-class member defaults.
	Args model.ArgSource
}

// Plan returns the most-derived plan of class.
func (e *Engine) Plan(class string) (ir.Plan, error) {
	d, err := e.registry.Describe(class)
	if err != nil {
		return ir.Plan{}, err
	}
	return e.planner.Plan(d), nil
}

// Construct builds a complete object of class.
//
// On failure the already-completed sub-objects have been torn down in
// reverse order and the returned error is the *LifecycleFailure raised by
// the failing step. The returned Instance is then in PhaseFailed; it is
// returned so callers can inspect its states.
func (e *Engine) Construct(ctx context.Context, class string, req Request) (*Instance, error) {
	d, err := e.registry.Describe(class)
	if err != nil {
		return nil, err
	}
	ctorName := req.Constructor
	if ctorName == "" {
		ctorName = ir.DefaultConstructor
	}
	if _, ok := d.Constructor(ctorName); !ok {
		return nil, &RuntimeError{
			Code:    ErrCodeNoSuchConstructor,
			Message: fmt.Sprintf("class %s has no constructor %q", class, ctorName),
			Class:   class,
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inst := newInstance(e.runIDs.Generate(), class, d)
	r := &run{e: e, ctx: ctx}
	err = r.constructObject(inst, ctorName, req.Arg, req.Args)
	return inst, err
}

// Destroy runs the full destruction of a live object: for each layer,
// from most-derived down, its destructor body and then the teardown of
// its own members and bases. Virtual bases go last.
//
// An error from a destructor body does not stop the teardown; the first
// one is returned afterwards.
func (e *Engine) Destroy(ctx context.Context, inst *Instance) error {
	if err := inst.usable(); err != nil {
		return err
	}
	r := &run{e: e, ctx: ctx}
	return r.destroyObject(inst)
}

// DestroyVia destroys inst through a handle of static type static, as a
// delete through a base pointer does.
//
// If static's destructor is virtual the whole object is destroyed.
// Otherwise only the static sub-object's layer runs and the result is an
// error matching ErrPartialDestruction; the object counts as destroyed.
func (e *Engine) DestroyVia(ctx context.Context, inst *Instance, static string) error {
	if err := inst.usable(); err != nil {
		return err
	}
	sd, err := e.registry.Describe(static)
	if err != nil {
		return err
	}
	path, cerr := e.subObjectPath(inst, inst.class, inst.path, static)
	if cerr != nil {
		return cerr
	}

	r := &run{e: e, ctx: ctx}
	if sd.HasVirtualDestructor() || sd == inst.class {
		return r.destroyObject(inst)
	}

	inst.phase = PhaseDestroying
	derr := r.destroyLayer(inst, path, sd, e.planner.LayerPlan(sd))
	inst.setState(path, ir.TornDown)
	inst.phase = PhaseDestroyed
	if derr != nil {
		return derr
	}
	return &RuntimeError{
		Code:    ErrCodePartialDestruction,
		Message: fmt.Sprintf("%s destroyed through %s, whose destructor is not virtual", inst.class.Name(), static),
		Object:  inst.path,
		Class:   static,
	}
}

// Resolve returns the implementation a virtual call on inst reaches right
// now. An object whose construction failed has no dynamic type left to
// resolve against.
func (e *Engine) Resolve(inst *Instance, method string) (model.Implementation, error) {
	if inst.phase == PhaseFailed {
		return model.Implementation{}, newRuntimeError(ErrNotConstructed, inst, inst.class.Name(), method)
	}
	return resolve(inst, method)
}

// Call issues a virtual call on a live object.
func (e *Engine) Call(ctx context.Context, inst *Instance, method string) error {
	if err := inst.usable(); err != nil {
		return err
	}
	r := &run{e: e, ctx: ctx}
	return r.call(inst, method)
}
