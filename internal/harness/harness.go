package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/rs/zerolog"

	"github.com/roach88/ctorder/internal/compiler"
	"github.com/roach88/ctorder/internal/engine"
	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
	"github.com/roach88/ctorder/internal/store"
	"github.com/roach88/ctorder/internal/testutil"
)

// Harness runs one scenario against a real engine with deterministic
// seq values and run ids. Every event is also streamed into an in-memory
// store and read back at the end, so a scenario checks the persisted
// trace as well as the recorded one.
type Harness struct {
	engine   *engine.Engine
	recorder *engine.Recorder
	store    *store.Store
	sink     *store.Sink
	objects  map[string]*engine.Instance
	runIDs   []string
}

// Option configures Run.
type Option func(*options)

type options struct {
	logger zerolog.Logger
}

// WithLogger logs lifecycle events while the scenario runs.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// LoadSpecs compiles the classes a scenario declares: its spec files in
// order, then its inline CUE.
func LoadSpecs(s *Scenario) ([]ir.ClassSpec, error) {
	var specs []ir.ClassSpec
	for _, path := range s.Specs {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read spec %s: %w", path, err)
		}
		compiled, err := compiler.CompileSource(path, src)
		if err != nil {
			return nil, err
		}
		specs = append(specs, compiled...)
	}
	if s.CUE != "" {
		compiled, err := compiler.CompileSource(s.Name+".cue", []byte(s.CUE))
		if err != nil {
			return nil, err
		}
		specs = append(specs, compiled...)
	}
	return specs, nil
}

// Run executes a scenario and returns the result.
//
// The returned error covers setup problems (specs that do not compile or
// declare, an unusable store). Failed expectations are reported in
// Result.Errors instead.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	specs, err := LoadSpecs(scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	if errs := compiler.Validate(specs); len(errs) > 0 {
		return nil, fmt.Errorf("invalid specs: %w", errs[0])
	}
	registry := model.NewRegistry()
	if err := registry.DeclareAll(model.FromSpecs(specs)); err != nil {
		return nil, fmt.Errorf("failed to declare classes: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		recorder: engine.NewRecorder(),
		store:    st,
		sink:     store.NewSink(st),
		objects:  make(map[string]*engine.Instance),
	}
	h.engine = engine.New(registry,
		engine.WithClock(testutil.NewDeterministicClock()),
		engine.WithRunIDs(testutil.NewSequentialRunIDs(scenario.RunIDPrefix)),
		engine.WithObserver(h.recorder, h.sink, engine.NewLogObserver(o.logger)),
	)

	ctx := context.Background()
	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i, step, result)
	}
	result.Trace = h.recorder.Events()

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	if err := h.checkPersisted(ctx, result.Trace); err != nil {
		result.AddError(err.Error())
	}
	return result, nil
}

// executeStep runs one step and checks its expectation.
func (h *Harness) executeStep(ctx context.Context, index int, step Step, result *Result) {
	before := len(h.recorder.Events())
	op, object, view, err := h.apply(ctx, step)

	var out strings.Builder
	for _, ev := range h.recorder.Events()[before:] {
		if ev.Kind == ir.EventOutput {
			out.WriteString(ev.Detail)
		}
	}
	sr := StepResult{Index: index, Op: op, Output: out.String(), Error: ErrorCode(err)}
	result.Steps = append(result.Steps, sr)

	for _, msg := range checkExpect(step.Expect, sr, err, object, view) {
		result.AddError(fmt.Sprintf("steps[%d] %s: %s", index, op, msg))
	}
}

func (h *Harness) apply(ctx context.Context, step Step) (op string, inst *engine.Instance, view *engine.View, err error) {
	switch {
	case step.Construct != "":
		name := step.As
		if name == "" {
			name = step.Construct
		}
		req := engine.Request{Constructor: step.Constructor}
		if step.Arg != "" {
			req.Arg = step.Arg
		}
		if len(step.Args) > 0 {
			req.Args = argSource(step.Args)
		}
		inst, err = h.engine.Construct(ctx, step.Construct, req)
		if inst != nil {
			h.objects[name] = inst
			h.runIDs = append(h.runIDs, inst.RunID())
		}
		return "construct " + step.Construct, inst, nil, err

	case step.Destroy != "":
		inst, err = h.object(step.Destroy)
		if err == nil {
			err = h.engine.Destroy(ctx, inst)
		}
		return "destroy " + step.Destroy, inst, nil, err

	case step.DestroyVia != nil:
		inst, err = h.object(step.DestroyVia.Object)
		if err == nil {
			err = h.engine.DestroyVia(ctx, inst, step.DestroyVia.Class)
		}
		return fmt.Sprintf("destroy %s via %s", step.DestroyVia.Object, step.DestroyVia.Class), inst, nil, err

	case step.Call != nil:
		inst, err = h.object(step.Call.Object)
		if err == nil {
			err = h.engine.Call(ctx, inst, step.Call.Method)
		}
		return fmt.Sprintf("call %s.%s", step.Call.Object, step.Call.Method), inst, nil, err

	default:
		c := step.Cast
		mode := engine.CastRef
		if c.Mode == "pointer" {
			mode = engine.CastPointer
		}
		inst, err = h.object(c.Object)
		if err == nil {
			view, err = h.engine.Cast(inst, c.Class, mode)
		}
		return fmt.Sprintf("cast %s to %s", c.Object, c.Class), inst, view, err
	}
}

func (h *Harness) object(name string) (*engine.Instance, error) {
	inst, ok := h.objects[name]
	if !ok {
		return nil, fmt.Errorf("no object named %q", name)
	}
	return inst, nil
}

// checkPersisted compares the store's copy of each run with the recorded
// events.
func (h *Harness) checkPersisted(ctx context.Context, trace []ir.Event) error {
	if err := h.sink.Err(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	for _, id := range slices.Compact(slices.Sorted(slices.Values(h.runIDs))) {
		stored, err := h.store.ReadEvents(ctx, id)
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		var recorded []ir.Event
		for _, ev := range trace {
			if ev.RunID == id {
				recorded = append(recorded, ev)
			}
		}
		if !slices.Equal(stored, recorded) {
			return fmt.Errorf("store: run %s persisted %d events, recorded %d", id, len(stored), len(recorded))
		}
	}
	return nil
}

// argSource turns scenario args into explicit initializers.
func argSource(args map[string]ArgSpec) model.Inits {
	inits := make(model.Inits, len(args))
	for target, a := range args {
		init := model.Init{Constructor: a.Constructor, Arg: a.Arg}
		inits[target] = func(model.Context) (model.Init, error) { return init, nil }
	}
	return inits
}

// ErrorCode classifies an error for Expect.Error. A lifecycle failure is
// reported as LIFECYCLE_FAILURE whatever its cause.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var (
		lf *engine.LifecycleFailure
		ce *engine.CastError
		re *engine.RuntimeError
		me *model.ModelError
	)
	switch {
	case errors.As(err, &lf):
		return CodeLifecycleFailure
	case errors.As(err, &ce):
		return CodeCastFailed
	case errors.As(err, &re):
		return string(re.Code)
	case errors.As(err, &me):
		return string(me.Code)
	default:
		return "ERROR"
	}
}

func checkExpect(exp *Expect, sr StepResult, err error, inst *engine.Instance, view *engine.View) []string {
	var msgs []string
	if exp == nil {
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
		}
		return msgs
	}

	if exp.Output != nil && *exp.Output != sr.Output {
		msgs = append(msgs, fmt.Sprintf("output = %q, expected %q", sr.Output, *exp.Output))
	}
	switch {
	case exp.Error == "" || exp.Error == CodeNone:
		if err != nil {
			msgs = append(msgs, fmt.Sprintf("unexpected error: %v", err))
		}
	case exp.Error != sr.Error:
		msgs = append(msgs, fmt.Sprintf("error = %q (%v), expected %q", sr.Error, err, exp.Error))
	}

	if exp.FailurePath != "" || exp.FailureStep != "" || exp.Cause != "" {
		var lf *engine.LifecycleFailure
		if !errors.As(err, &lf) {
			msgs = append(msgs, "expected a lifecycle failure")
		} else {
			if exp.FailurePath != "" && lf.Path != exp.FailurePath {
				msgs = append(msgs, fmt.Sprintf("failure path = %q, expected %q", lf.Path, exp.FailurePath))
			}
			if exp.FailureStep != "" && string(lf.Step) != exp.FailureStep {
				msgs = append(msgs, fmt.Sprintf("failure step = %q, expected %q", lf.Step, exp.FailureStep))
			}
			if exp.Cause != "" && (lf.Cause == nil || !strings.Contains(lf.Cause.Error(), exp.Cause)) {
				msgs = append(msgs, fmt.Sprintf("failure cause = %v, expected it to contain %q", lf.Cause, exp.Cause))
			}
		}
	}

	if exp.Phase != "" {
		switch {
		case inst == nil:
			msgs = append(msgs, fmt.Sprintf("phase: no object, expected %q", exp.Phase))
		case string(inst.Phase()) != exp.Phase:
			msgs = append(msgs, fmt.Sprintf("phase = %q, expected %q", inst.Phase(), exp.Phase))
		}
	}

	if exp.Null && (view != nil || err != nil) {
		msgs = append(msgs, fmt.Sprintf("expected an empty cast result, got view=%v err=%v", view, err))
	}
	if exp.Path != "" {
		switch {
		case view == nil:
			msgs = append(msgs, fmt.Sprintf("cast produced no view, expected path %q", exp.Path))
		case view.Path != exp.Path:
			msgs = append(msgs, fmt.Sprintf("cast path = %q, expected %q", view.Path, exp.Path))
		}
	}
	return msgs
}
