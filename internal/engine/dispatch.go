package engine

import (
	"fmt"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

// resolve finds the implementation a virtual call reaches.
//
// While a layer's constructor or destructor runs (its initializers and
// sub-object steps included), calls resolve as seen from that layer:
// its own override or its nearest ancestor's, never a more-derived one.
// With no layer active, the most-derived class decides.
func resolve(inst *Instance, method string) (model.Implementation, error) {
	if inst.phase == PhaseDestroyed {
		return model.Implementation{}, newRuntimeError(ErrObjectDestroyed, inst, inst.class.Name(), method)
	}
	dyn, _ := inst.dynamicType()

	impl, ok := dyn.Lookup(method)
	if !ok {
		return model.Implementation{}, newRuntimeError(ErrNoSuchMethod, inst, dyn.Name(), method)
	}
	if impl.Pure() {
		return impl, newRuntimeError(ErrPureVirtualCall, inst, dyn.Name(), method)
	}
	return impl, nil
}

// MaxCallDepth bounds how deeply virtual calls on one object may nest.
const MaxCallDepth = 256

// call resolves and runs a virtual call.
func (r *run) call(inst *Instance, method string) error {
	dyn, path := inst.dynamicType()
	impl, err := resolve(inst, method)
	if err == nil && inst.calls >= MaxCallDepth {
		err = newRuntimeError(ErrCallDepthExceeded, inst, dyn.Name(), method)
	}
	if err != nil {
		r.emit(inst, ir.EventDispatch, path, dyn.Name(), "", fmt.Sprintf("%s -> error: %v", method, err))
		return err
	}
	r.emit(inst, ir.EventDispatch, path, dyn.Name(), "", method+" -> "+impl.Owner+"::"+method)

	arg := inst.args[inst.path]
	if f := inst.top(); f != nil {
		arg = f.arg
	}
	inst.calls++
	defer func() { inst.calls-- }()
	return impl.Fn(&bodyContext{r: r, inst: inst, path: path, class: impl.Owner, arg: arg})
}

// context returns the Context bodies and initializers of frame f see.
func (r *run) context(inst *Instance, f *frame) model.Context {
	return &bodyContext{r: r, inst: inst, path: f.path, class: f.class.Name(), arg: f.arg}
}

// bodyContext implements model.Context.
type bodyContext struct {
	r     *run
	inst  *Instance
	path  string
	class string
	arg   any
}

func (c *bodyContext) Arg() any      { return c.arg }
func (c *bodyContext) Class() string { return c.class }
func (c *bodyContext) Path() string  { return c.path }

func (c *bodyContext) Emit(text string) {
	c.r.emit(c.inst, ir.EventOutput, c.path, c.class, "", text)
}

func (c *bodyContext) Call(method string) error {
	return c.r.call(c.inst, method)
}
