package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

func emit(v string) ir.Action { return ir.Action{Op: ir.OpEmit, Value: v} }
func call(m string) ir.Action { return ir.Action{Op: ir.OpCall, Value: m} }
func fail(v string) ir.Action { return ir.Action{Op: ir.OpFail, Value: v} }

func initArg(target, arg string) ir.InitEntry {
	return ir.InitEntry{Target: target, Init: ir.InitSpec{Arg: arg}}
}

func ctorSpec(inits []ir.InitEntry, body ...ir.Action) map[string]ir.ConstructorSpec {
	return map[string]ir.ConstructorSpec{ir.DefaultConstructor: {Inits: inits, Body: body}}
}

func dtorSpec(body ...ir.Action) ir.DestructorSpec {
	return ir.DestructorSpec{Body: body}
}

func methods(kv ...string) map[string]ir.MethodSpec {
	out := make(map[string]ir.MethodSpec)
	for i := 0; i+1 < len(kv); i += 2 {
		out[kv[i]] = ir.MethodSpec{Body: []ir.Action{emit(kv[i+1])}}
	}
	return out
}

func member(name, typ string) ir.MemberSpec { return ir.MemberSpec{Name: name, Type: typ} }

func base(class string) ir.BaseSpec { return ir.BaseSpec{Class: class} }
func virtualBase(class string) ir.BaseSpec { return ir.BaseSpec{Class: class, Virtual: true} }

// tagClass prints its argument when built and the upper-case form when
// torn down.
func tagClass(name string) ir.ClassSpec {
	return ir.ClassSpec{
		Name:         name,
		Constructors: ctorSpec(nil, emit("{arg}")),
		Destructor:   dtorSpec(emit("{ARG}")),
	}
}

// throwingClass prints its argument and then fails.
func throwingClass(name string) ir.ClassSpec {
	return ir.ClassSpec{
		Name:         name,
		Constructors: ctorSpec(nil, emit("{arg}"), fail("{arg}")),
	}
}

type fixture struct {
	engine   *Engine
	recorder *Recorder
	registry *model.Registry
}

func newFixture(t *testing.T, specs ...ir.ClassSpec) *fixture {
	t.Helper()
	reg := model.NewRegistry()
	require.NoError(t, reg.DeclareAll(model.FromSpecs(specs)))
	return newFixtureFromRegistry(t, reg)
}

func newFixtureFromDecls(t *testing.T, decls ...model.ClassDecl) *fixture {
	t.Helper()
	reg := model.NewRegistry()
	require.NoError(t, reg.DeclareAll(decls))
	return newFixtureFromRegistry(t, reg)
}

func newFixtureFromRegistry(t *testing.T, reg *model.Registry) *fixture {
	t.Helper()
	rec := NewRecorder()
	return &fixture{
		engine:   New(reg, WithObserver(rec), WithRunIDs(NewFixedGenerator("run-1", "run-2", "run-3", "run-4"))),
		recorder: rec,
		registry: reg,
	}
}

func (f *fixture) construct(t *testing.T, class string) *Instance {
	t.Helper()
	inst, err := f.engine.Construct(context.Background(), class, Request{})
	require.NoError(t, err)
	return inst
}

// takeOutput returns the output recorded so far and resets the recorder.
func (f *fixture) takeOutput() string {
	out := f.recorder.Output()
	f.recorder.Reset()
	return out
}

// paths returns the Path of each event of kind, in trace order.
func (f *fixture) paths(kind ir.EventKind) []string {
	var out []string
	for _, ev := range f.recorder.Filter(kind) {
		out = append(out, ev.Path)
	}
	return out
}

func reversed(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
