package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

// run carries what one engine operation needs to stamp events.
type run struct {
	e   *Engine
	ctx context.Context
}

func (r *run) emit(inst *Instance, kind ir.EventKind, path, class string, step ir.StepKind, detail string) {
	if len(r.e.observer) == 0 {
		return
	}
	r.e.observer.OnEvent(r.ctx, ir.Event{
		Seq:    r.e.clock.Next(),
		RunID:  inst.runID,
		Kind:   kind,
		Object: inst.path,
		Path:   path,
		Class:  class,
		Step:   step,
		Detail: detail,
	})
}

func (r *run) push(inst *Instance, f *frame, phase string) {
	inst.stack = append(inst.stack, f)
	r.emit(inst, ir.EventLayerEnter, f.path, f.class.Name(), "", phase)
}

func (r *run) pop(inst *Instance, phase string) {
	f := inst.top()
	inst.stack = inst.stack[:len(inst.stack)-1]
	r.emit(inst, ir.EventLayerExit, f.path, f.class.Name(), "", phase)
}

// fail creates the failure at its origin and records it.
func (r *run) fail(inst *Instance, path, class string, step ir.StepKind, cause error) *LifecycleFailure {
	f := &LifecycleFailure{Object: inst.path, Path: path, Class: class, Step: step, Cause: cause}
	r.emit(inst, ir.EventFailure, path, class, step, cause.Error())
	return f
}

// constructObject builds inst as a most-derived object.
func (r *run) constructObject(inst *Instance, ctorName string, arg any, explicit model.ArgSource) error {
	inst.phase = PhaseConstructing
	inst.setState(inst.path, ir.InProgress)

	plan := r.e.planner.Plan(inst.class)
	if err := r.constructLayer(inst, inst.path, inst.class, plan, ctorName, arg, explicit); err != nil {
		inst.phase = PhaseFailed
		return err
	}
	inst.setState(inst.path, ir.Completed)
	inst.phase = PhaseLive
	return nil
}

// constructLayer runs one layer: push, steps, body, pop. On failure the
// layer's completed prefix has been unwound before it returns.
func (r *run) constructLayer(inst *Instance, path string, class *model.ClassDescriptor, plan ir.Plan, ctorName string, arg any, explicit model.ArgSource) error {
	ctor, _ := class.Constructor(ctorName)
	inst.args[path] = arg

	f := &frame{path: path, class: class, arg: arg}
	r.push(inst, f, ir.PhaseConstruct)
	err := r.runConstructor(inst, f, plan, ctor, explicit)
	r.pop(inst, ir.PhaseConstruct)
	return err
}

// runConstructor runs ctor in the already-pushed frame f.
//
// A delegating constructor first runs its target to completion, body
// included. From then on the layer counts as constructed: if the
// delegating body fails, the layer is destroyed in full before the
// failure propagates.
func (r *run) runConstructor(inst *Instance, f *frame, plan ir.Plan, ctor *model.Constructor, explicit model.ArgSource) error {
	if d := ctor.Delegate; d != nil {
		init := model.Init{Constructor: d.Constructor}
		if d.Arg != nil {
			got, err := d.Arg(r.context(inst, f))
			if err != nil {
				return r.fail(inst, f.path, f.class.Name(), ir.StepBody, err)
			}
			init.Arg = got.Arg
		}
		target, _ := f.class.Constructor(d.Constructor)

		saved := f.arg
		f.arg = init.Arg
		err := r.runConstructor(inst, f, plan, target, explicit)
		f.arg = saved
		if err != nil {
			return err
		}

		if err := r.body(inst, f, ctor.Body, ir.PhaseConstruct); err != nil {
			failure := r.fail(inst, f.path, f.class.Name(), ir.StepBody, err)
			r.emit(inst, ir.EventUnwind, f.path, f.class.Name(), "", "delegated constructor completed")
			_ = r.teardownLayer(inst, f, plan)
			return failure
		}
		return nil
	}

	var completed []ir.Step
	for _, step := range plan.Steps {
		if err := r.buildStep(inst, f, ctor, explicit, step); err != nil {
			r.unwind(inst, f, completed)
			return err
		}
		completed = append(completed, step)
	}

	if err := r.body(inst, f, ctor.Body, ir.PhaseConstruct); err != nil {
		failure := r.fail(inst, f.path, f.class.Name(), ir.StepBody, err)
		r.unwind(inst, f, completed)
		return failure
	}
	return nil
}

// body runs a constructor or destructor body in frame f.
func (r *run) body(inst *Instance, f *frame, body model.Body, phase string) error {
	if body == nil {
		return nil
	}
	r.emit(inst, ir.EventBodyEnter, f.path, f.class.Name(), ir.StepBody, phase)
	err := body(r.context(inst, f))
	r.emit(inst, ir.EventBodyExit, f.path, f.class.Name(), ir.StepBody, phase)
	return err
}

// stepPath returns the path of the sub-object a step of layer f builds.
func stepPath(inst *Instance, f *frame, step ir.Step) string {
	switch step.Kind {
	case ir.StepVirtualBase:
		return inst.path + "::" + step.Target
	case ir.StepDirectBase:
		return f.path + "::" + step.Target
	default:
		return f.path + "." + step.Target
	}
}

// initializer picks the source of a step's Init: the explicit argument
// source, then the constructor's initializer list, then the member's
// in-class default. Sources are never combined.
func initializer(f *frame, ctor *model.Constructor, explicit model.ArgSource, step ir.Step) model.Initializer {
	if explicit != nil {
		if init, ok := explicit.Initializer(step.Target); ok {
			return init
		}
	}
	if init, ok := ctor.Inits.Initializer(step.Target); ok {
		return init
	}
	if step.Kind == ir.StepMember {
		if m, ok := f.class.Member(step.Target); ok && m.Default != nil {
			return m.Default
		}
	}
	return nil
}

// buildStep builds one sub-object of layer f.
func (r *run) buildStep(inst *Instance, f *frame, ctor *model.Constructor, explicit model.ArgSource, step ir.Step) error {
	path := stepPath(inst, f, step)
	inst.setState(path, ir.InProgress)
	r.emit(inst, ir.EventStepBegin, path, step.Class, step.Kind, "")

	if err := r.ctx.Err(); err != nil {
		return r.fail(inst, path, step.Class, step.Kind, err)
	}

	var init model.Init
	if fn := initializer(f, ctor, explicit, step); fn != nil {
		got, err := fn(r.context(inst, f))
		if err != nil {
			return r.fail(inst, path, step.Class, step.Kind, err)
		}
		init = got
	}

	switch {
	case step.IsBase():
		base, err := r.e.registry.Describe(step.Class)
		if err != nil {
			return r.fail(inst, path, step.Class, step.Kind, err)
		}
		if err := r.checkConstructor(inst, base, init); err != nil {
			return r.fail(inst, path, step.Class, step.Kind, err)
		}
		if err := r.constructLayer(inst, path, base, r.e.planner.LayerPlan(base), init.ConstructorName(), init.Arg, nil); err != nil {
			return err
		}

	default:
		slot, _ := f.class.Member(step.Target)
		if slot.IsScalar() {
			inst.values[path] = init.Arg
			break
		}
		if err := r.checkConstructor(inst, slot.Class, init); err != nil {
			return r.fail(inst, path, step.Class, step.Kind, err)
		}
		nested := newInstance(inst.runID, path, slot.Class)
		inst.members[path] = nested
		if err := r.constructObject(nested, init.ConstructorName(), init.Arg, nil); err != nil {
			return passFailure(err, func(cause error) error {
				return r.fail(inst, path, step.Class, step.Kind, cause)
			})
		}
	}

	inst.setState(path, ir.Completed)
	r.emit(inst, ir.EventStepComplete, path, step.Class, step.Kind, "")
	return nil
}

func (r *run) checkConstructor(inst *Instance, class *model.ClassDescriptor, init model.Init) error {
	if _, ok := class.Constructor(init.ConstructorName()); ok {
		return nil
	}
	return &RuntimeError{
		Code:    ErrCodeNoSuchConstructor,
		Message: fmt.Sprintf("class %s has no constructor %q", class.Name(), init.ConstructorName()),
		Object:  inst.path,
		Class:   class.Name(),
	}
}

// passFailure returns err unchanged if it is a LifecycleFailure raised
// deeper down, otherwise wraps it as a new failure.
func passFailure(err error, wrap func(error) error) error {
	var lf *LifecycleFailure
	if errors.As(err, &lf) {
		return lf
	}
	return wrap(err)
}

// destroyObject destroys a live object in full.
func (r *run) destroyObject(inst *Instance) error {
	inst.phase = PhaseDestroying
	plan := r.e.planner.Plan(inst.class)
	err := r.destroyLayer(inst, inst.path, inst.class, plan)
	inst.setState(inst.path, ir.TornDown)
	inst.phase = PhaseDestroyed
	return err
}

// destroyLayer runs one layer's destruction: push, destructor body,
// reverse teardown of the layer's own sub-objects, pop.
func (r *run) destroyLayer(inst *Instance, path string, class *model.ClassDescriptor, plan ir.Plan) error {
	f := &frame{path: path, class: class, arg: inst.args[path]}
	r.push(inst, f, ir.PhaseDestroy)
	err := r.teardownLayer(inst, f, plan)
	r.pop(inst, ir.PhaseDestroy)
	return err
}

// teardownLayer runs the destructor body of f and tears down its
// sub-objects in reverse plan order. f must be on the stack.
func (r *run) teardownLayer(inst *Instance, f *frame, plan ir.Plan) error {
	var first error
	if err := r.body(inst, f, f.class.Destructor().Body, ir.PhaseDestroy); err != nil {
		r.emit(inst, ir.EventFailure, f.path, f.class.Name(), ir.StepBody, err.Error())
		first = fmt.Errorf("destructor of %s: %w", f.path, err)
	}
	for _, step := range plan.Reverse() {
		if err := r.teardownStep(inst, f, step); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// teardownStep finalizes one completed sub-object of layer f. Sub-objects
// that never completed are left alone.
func (r *run) teardownStep(inst *Instance, f *frame, step ir.Step) error {
	path := stepPath(inst, f, step)
	if inst.State(path) != ir.Completed {
		return nil
	}

	var err error
	switch {
	case step.IsBase():
		base, derr := r.e.registry.Describe(step.Class)
		if derr != nil {
			return derr
		}
		err = r.destroyLayer(inst, path, base, r.e.planner.LayerPlan(base))
	default:
		if nested, ok := inst.members[path]; ok {
			if nested.phase == PhaseLive {
				err = r.destroyObject(nested)
			}
		} else {
			delete(inst.values, path)
		}
	}

	inst.setState(path, ir.TornDown)
	r.emit(inst, ir.EventStepTornDown, path, step.Class, step.Kind, "")
	return err
}
