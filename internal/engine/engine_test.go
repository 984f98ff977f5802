package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

func TestEngine_PhaseDependentDispatch(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name:         "Base",
			Members:      []ir.MemberSpec{member("b", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("b", "b")}, call("f"), emit("1")),
			Destructor:   dtorSpec(call("f"), emit("1")),
			Methods:      methods("f", "[B]"),
		},
		ir.ClassSpec{
			Name:         "Derived",
			Bases:        []ir.BaseSpec{base("Base")},
			Members:      []ir.MemberSpec{member("d", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("d", "d")}, call("f"), emit("2")),
			Destructor:   dtorSpec(call("f"), emit("2")),
			Methods:      methods("f", "[D]"),
		},
	)
	ctx := context.Background()

	inst := f.construct(t, "Derived")
	assert.Equal(t, "b[B]1d[D]2", f.takeOutput())
	assert.Equal(t, PhaseLive, inst.Phase())
	assert.Empty(t, inst.ActiveLayer())

	require.NoError(t, f.engine.Destroy(ctx, inst))
	assert.Equal(t, "[D]2D[B]1B", f.takeOutput())
	assert.Equal(t, PhaseDestroyed, inst.Phase())
}

func TestEngine_ConstructorDispatchThenLiveCall(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{
			Name:         "A",
			Constructors: ctorSpec(nil, call("f"), emit("x")),
			Destructor:   ir.DestructorSpec{Virtual: true},
			Methods:      methods("f", "a"),
		},
		ir.ClassSpec{
			Name:         "B",
			Bases:        []ir.BaseSpec{base("A")},
			Constructors: ctorSpec(nil, emit("y")),
			Methods:      methods("f", "b"),
		},
	)
	ctx := context.Background()

	inst := f.construct(t, "B")
	require.NoError(t, f.engine.Call(ctx, inst, "f"))
	assert.Equal(t, "axyb", f.recorder.Output())

	dispatch := f.recorder.Filter(ir.EventDispatch)
	require.Len(t, dispatch, 2)
	assert.Equal(t, "A", dispatch[0].Class, "constructor of A sees A")
	assert.Equal(t, "f -> A::f", dispatch[0].Detail)
	assert.Equal(t, "B", dispatch[1].Class)
	assert.Equal(t, "f -> B::f", dispatch[1].Detail)
}

func TestEngine_DestructorDispatchThroughVirtualBaseDestructor(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{
			Name:       "B",
			Destructor: ir.DestructorSpec{Virtual: true, Body: []ir.Action{call("f"), emit("1")}},
			Methods:    methods("f", "b"),
		},
		ir.ClassSpec{
			Name:       "D",
			Bases:      []ir.BaseSpec{base("B")},
			Destructor: dtorSpec(call("f"), emit("2")),
			Methods:    methods("f", "d"),
		},
	)

	inst := f.construct(t, "D")
	require.NoError(t, f.engine.DestroyVia(context.Background(), inst, "B"))
	assert.Equal(t, "d2b1", f.recorder.Output())
}

func diamondSpecs() []ir.ClassSpec {
	return []ir.ClassSpec{
		tagClass("P"),
		{
			Name:         "V",
			Members:      []ir.MemberSpec{member("p", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("p", "{arg}")}),
		},
		{
			Name:         "L",
			Bases:        []ir.BaseSpec{virtualBase("V")},
			Members:      []ir.MemberSpec{member("l", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("V", "x"), initArg("l", "l")}, emit("1")),
		},
		{
			Name:         "R",
			Bases:        []ir.BaseSpec{virtualBase("V")},
			Members:      []ir.MemberSpec{member("r", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("V", "y"), initArg("r", "r")}, emit("2")),
		},
		{
			Name:    "M",
			Bases:   []ir.BaseSpec{base("L"), base("R")},
			Members: []ir.MemberSpec{member("m", "P")},
			Constructors: ctorSpec([]ir.InitEntry{
				initArg("V", "v"), initArg("R", ""), initArg("m", "m"), initArg("L", ""),
			}, emit("3")),
			Destructor: dtorSpec(emit("4")),
		},
	}
}

func TestEngine_DiamondConstructsVirtualBaseOnce(t *testing.T) {
	f := newFixture(t, diamondSpecs()...)

	inst := f.construct(t, "M")
	assert.Equal(t, "vl1r2m3", f.recorder.Output())

	vLayers := 0
	for _, ev := range f.recorder.Filter(ir.EventLayerEnter) {
		if ev.Class == "V" {
			vLayers++
			assert.Equal(t, "M::V", ev.Path)
		}
	}
	assert.Equal(t, 1, vLayers, "virtual base is constructed exactly once")

	plan, err := f.engine.Plan("M")
	require.NoError(t, err)
	own := make(map[string]bool)
	for _, step := range plan.Steps {
		own[stepPath(inst, &frame{path: "M"}, step)] = true
	}
	ownOnly := func(paths []string) []string {
		var out []string
		for _, p := range paths {
			if own[p] {
				out = append(out, p)
			}
		}
		return out
	}

	built := ownOnly(f.paths(ir.EventStepComplete))
	f.recorder.Reset()

	require.NoError(t, f.engine.Destroy(context.Background(), inst))
	assert.Equal(t, "4MRLV", f.recorder.Output())

	torn := ownOnly(f.paths(ir.EventStepTornDown))
	assert.Equal(t, []string{"M::V", "M::L", "M::R", "M.m"}, built)
	assert.Equal(t, reversed(built), torn, "destruction is the exact reverse of construction")
	assert.Equal(t, "M::V", torn[len(torn)-1], "virtual base is destroyed last")
}

func TestEngine_MemberFailureTearsDownCompletedPrefix(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		throwingClass("Q"),
		ir.ClassSpec{
			Name:    "S",
			Members: []ir.MemberSpec{member("a", "P"), member("b", "Q"), member("c", "P")},
			Constructors: ctorSpec([]ir.InitEntry{
				initArg("c", "c"), initArg("b", "b"), initArg("a", "a"),
			}, emit("s")),
		},
	)

	inst, err := f.engine.Construct(context.Background(), "S", Request{})
	require.Error(t, err)
	assert.Equal(t, "abA", f.recorder.Output())

	var lf *LifecycleFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, "S.b", lf.Object, "failure raised inside the member object")
	assert.Equal(t, ir.StepBody, lf.Step)
	assert.Equal(t, "Q", lf.Class)

	var sf *model.ScriptFailure
	require.ErrorAs(t, err, &sf)
	assert.Equal(t, "b", sf.Payload)

	assert.Equal(t, PhaseFailed, inst.Phase())
	assert.Equal(t, ir.TornDown, inst.State("S.a"))
	assert.Equal(t, ir.InProgress, inst.State("S.b"))
	assert.Equal(t, ir.NotStarted, inst.State("S.c"))
}

func TestEngine_FailureInDerivedMemberUnwindsBaseLayer(t *testing.T) {
	f := newFixture(t,
		tagClass("T"),
		throwingClass("Bad"),
		ir.ClassSpec{
			Name:         "Base",
			Members:      []ir.MemberSpec{member("b", "T")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("b", "p")}, emit("1")),
			Destructor:   dtorSpec(emit("2")),
		},
		ir.ClassSpec{
			Name:    "Der",
			Bases:   []ir.BaseSpec{base("Base")},
			Members: []ir.MemberSpec{member("d", "T"), member("x", "Bad"), member("e", "T")},
			Constructors: ctorSpec([]ir.InitEntry{
				initArg("e", "s"), initArg("x", "r"), initArg("d", "q"),
			}, emit("3")),
			Destructor: dtorSpec(emit("4")),
		},
	)

	_, err := f.engine.Construct(context.Background(), "Der", Request{})
	require.True(t, IsLifecycleFailure(err))
	assert.Equal(t, "p1qrQ2P", f.recorder.Output())

	unwinds := f.recorder.Filter(ir.EventUnwind)
	require.NotEmpty(t, unwinds)
	assert.Equal(t, "Der", unwinds[len(unwinds)-1].Path)
}

func TestEngine_BaseBodyFailure(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name:         "B",
			Members:      []ir.MemberSpec{member("b", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("b", "b")}, emit("1"), fail("0")),
			Destructor:   dtorSpec(emit("2")),
		},
		ir.ClassSpec{
			Name:         "D",
			Bases:        []ir.BaseSpec{base("B")},
			Members:      []ir.MemberSpec{member("d", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("d", "d")}, emit("3")),
			Destructor:   dtorSpec(emit("4")),
		},
	)

	inst, err := f.engine.Construct(context.Background(), "D", Request{})
	assert.Equal(t, "b1B", f.recorder.Output(), "destructor body of a failed layer never runs")

	var lf *LifecycleFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, "D", lf.Object)
	assert.Equal(t, "D::B", lf.Path)
	assert.Equal(t, ir.StepBody, lf.Step)

	assert.Equal(t, ir.InProgress, inst.State("D::B"))
	assert.Equal(t, ir.TornDown, inst.State("D::B.b"))
	assert.Equal(t, ir.NotStarted, inst.State("D.d"))
}

func TestEngine_SameFailureReturnedThroughEveryLayer(t *testing.T) {
	var raised *LifecycleFailure
	f := newFixture(t,
		throwingClass("Bad"),
		ir.ClassSpec{Name: "A", Members: []ir.MemberSpec{member("x", "Bad")}},
		ir.ClassSpec{Name: "B", Bases: []ir.BaseSpec{base("A")}},
		ir.ClassSpec{Name: "C", Bases: []ir.BaseSpec{base("B")}},
	)

	_, err := f.engine.Construct(context.Background(), "C", Request{})
	require.ErrorAs(t, err, &raised)
	assert.Same(t, raised, err, "the failure is re-signaled unchanged")
	assert.Equal(t, "C::B::A.x", raised.Object)

	failures := f.recorder.Filter(ir.EventFailure)
	assert.Len(t, failures, 1, "the failure is raised once")
	assert.Len(t, f.recorder.Filter(ir.EventUnwind), 4, "every enclosing layer unwinds")
}

func TestEngine_StepKFailureTearsDownExactlyThePrefix(t *testing.T) {
	const n = 6
	for k := 1; k <= n; k++ {
		inits := model.Inits{}
		decl := model.ClassDecl{Name: "S", Constructors: map[string]model.Constructor{"default": {Inits: inits}}}
		for i := 1; i <= n; i++ {
			name := string(rune('a' + i - 1))
			decl.Members = append(decl.Members, model.MemberDecl{Name: name, Type: "int"})
			inits[name] = func(model.Context) (model.Init, error) {
				if i == k {
					return model.Init{}, errors.New("boom")
				}
				return model.Init{Arg: i}, nil
			}
		}
		f := newFixtureFromDecls(t, decl)

		inst, err := f.engine.Construct(context.Background(), "S", Request{})
		require.Error(t, err)

		var want []string
		for i := k - 1; i >= 1; i-- {
			want = append(want, "S."+string(rune('a'+i-1)))
		}
		assert.Equal(t, want, f.paths(ir.EventStepTornDown), "k=%d", k)
		for i := k; i <= n; i++ {
			p := "S." + string(rune('a'+i-1))
			assert.NotEqual(t, ir.TornDown, inst.State(p), "k=%d step %s", k, p)
			_, stored := inst.Value(p)
			assert.False(t, stored)
		}
	}
}

func TestEngine_DelegatingConstructor(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name:    "S",
			Members: []ir.MemberSpec{member("a", "P"), member("b", "P")},
			Constructors: map[string]ir.ConstructorSpec{
				"int":     {Inits: []ir.InitEntry{initArg("b", "b"), initArg("a", "a")}, Body: []ir.Action{emit("1")}},
				"default": {Delegate: &ir.InitSpec{Constructor: "int", Arg: "0"}, Body: []ir.Action{emit("2")}},
			},
			Destructor: dtorSpec(emit("3")),
		},
	)

	inst := f.construct(t, "S")
	assert.Equal(t, "ab12", f.takeOutput())

	require.NoError(t, f.engine.Destroy(context.Background(), inst))
	assert.Equal(t, "3BA", f.takeOutput())
}

func TestEngine_DelegatingBodyFailureDestroysFully(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name:    "S",
			Members: []ir.MemberSpec{member("a", "P"), member("b", "P")},
			Constructors: map[string]ir.ConstructorSpec{
				"int":     {Inits: []ir.InitEntry{initArg("a", "a"), initArg("b", "b")}, Body: []ir.Action{emit("1")}},
				"default": {Delegate: &ir.InitSpec{Constructor: "int"}, Body: []ir.Action{emit("2"), fail("late")}},
			},
			Destructor: dtorSpec(emit("3")),
		},
	)

	inst, err := f.engine.Construct(context.Background(), "S", Request{})
	assert.Equal(t, "ab123BA", f.recorder.Output())

	var lf *LifecycleFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, ir.StepBody, lf.Step)
	assert.Equal(t, PhaseFailed, inst.Phase())
	assert.Equal(t, ir.TornDown, inst.State("S.a"))
	assert.Equal(t, ir.TornDown, inst.State("S.b"))
}

func TestEngine_DefaultMemberInitializerOverridden(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name: "S",
			Members: []ir.MemberSpec{
				{Name: "a", Type: "P", Default: &ir.InitSpec{Arg: "a"}},
				{Name: "b", Type: "P", Default: &ir.InitSpec{Arg: "b"}},
			},
			Constructors: ctorSpec([]ir.InitEntry{initArg("b", "x")}, emit("1")),
			Destructor:   dtorSpec(emit("2")),
		},
	)

	inst := f.construct(t, "S")
	assert.Equal(t, "ax1", f.takeOutput())

	require.NoError(t, f.engine.Destroy(context.Background(), inst))
	assert.Equal(t, "2XA", f.takeOutput())
}

func TestEngine_RequestArgsOverrideConstructorList(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name:         "S",
			Members:      []ir.MemberSpec{{Name: "a", Type: "P", Default: &ir.InitSpec{Arg: "a"}}, member("n", "int")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("a", "x"), initArg("n", "{arg}")}),
		},
	)

	inst, err := f.engine.Construct(context.Background(), "S", Request{
		Arg:  "7",
		Args: model.Inits{"a": model.Value("y")},
	})
	require.NoError(t, err)
	assert.Equal(t, "y", f.recorder.Output())

	v, ok := inst.Value("S.n")
	require.True(t, ok)
	assert.Equal(t, "7", v)

	a, ok := inst.Member("S.a")
	require.True(t, ok)
	assert.Equal(t, "P", a.Class())
	assert.Equal(t, PhaseLive, a.Phase())
}

func TestEngine_DestroyViaNonVirtualDestructor(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{Name: "B", Destructor: dtorSpec(emit("b"))},
		ir.ClassSpec{Name: "D", Bases: []ir.BaseSpec{base("B")}, Destructor: dtorSpec(emit("d"))},
	)

	inst := f.construct(t, "D")
	err := f.engine.DestroyVia(context.Background(), inst, "B")
	assert.ErrorIs(t, err, ErrPartialDestruction)
	assert.Equal(t, "b", f.recorder.Output())
	assert.Equal(t, PhaseDestroyed, inst.Phase())
	assert.Equal(t, ir.TornDown, inst.State("D::B"))
}

func TestEngine_DestroyViaVirtualDestructor(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{Name: "B", Destructor: ir.DestructorSpec{Virtual: true, Body: []ir.Action{emit("b")}}},
		ir.ClassSpec{Name: "D", Bases: []ir.BaseSpec{base("B")}, Destructor: dtorSpec(emit("d"))},
	)

	inst := f.construct(t, "D")
	require.NoError(t, f.engine.DestroyVia(context.Background(), inst, "B"))
	assert.Equal(t, "db", f.recorder.Output())
}

func TestEngine_DestroyViaUnrelatedClass(t *testing.T) {
	f := newFixture(t, ir.ClassSpec{Name: "B"}, ir.ClassSpec{Name: "X"})

	inst := f.construct(t, "B")
	err := f.engine.DestroyVia(context.Background(), inst, "X")
	assert.True(t, IsCastError(err))
	assert.Equal(t, PhaseLive, inst.Phase())
}

func TestEngine_PureVirtualCallDuringConstruction(t *testing.T) {
	f := newFixtureFromDecls(t,
		model.ClassDecl{
			Name:         "A",
			Methods:      map[string]model.Method{"f": nil},
			Constructors: map[string]model.Constructor{"default": {Body: func(ctx model.Context) error { return ctx.Call("f") }}},
		},
		model.ClassDecl{
			Name:    "B",
			Bases:   []model.BaseDecl{{Class: "A"}},
			Methods: map[string]model.Method{"f": func(ctx model.Context) error { ctx.Emit("b"); return nil }},
		},
	)

	_, err := f.engine.Construct(context.Background(), "B", Request{})
	assert.ErrorIs(t, err, ErrPureVirtualCall)

	var lf *LifecycleFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, "B::A", lf.Path)
	assert.Empty(t, f.recorder.Output())
}

func TestEngine_ResolveAndCallErrors(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{Name: "A", Methods: map[string]ir.MethodSpec{"f": {Body: []ir.Action{emit("a")}}, "g": {Pure: true}}},
	)
	ctx := context.Background()
	inst := f.construct(t, "A")

	impl, err := f.engine.Resolve(inst, "f")
	require.NoError(t, err)
	assert.Equal(t, "A", impl.Owner)

	_, err = f.engine.Resolve(inst, "g")
	assert.ErrorIs(t, err, ErrPureVirtualCall)

	err = f.engine.Call(ctx, inst, "missing")
	assert.ErrorIs(t, err, ErrNoSuchMethod)
	assert.False(t, errors.Is(err, ErrPureVirtualCall))

	require.NoError(t, f.engine.Destroy(ctx, inst))

	_, err = f.engine.Resolve(inst, "f")
	assert.ErrorIs(t, err, ErrObjectDestroyed)
	assert.ErrorIs(t, f.engine.Call(ctx, inst, "f"), ErrObjectDestroyed)
	assert.ErrorIs(t, f.engine.Destroy(ctx, inst), ErrObjectDestroyed)
}

func TestEngine_DiamondDispatchReachesFinalOverrider(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{Name: "V", Destructor: ir.DestructorSpec{Virtual: true}, Methods: methods("f", "v")},
		ir.ClassSpec{Name: "L", Bases: []ir.BaseSpec{virtualBase("V")}},
		ir.ClassSpec{Name: "R", Bases: []ir.BaseSpec{virtualBase("V")}, Methods: methods("f", "r")},
		ir.ClassSpec{
			Name:         "M",
			Bases:        []ir.BaseSpec{base("L"), base("R")},
			Constructors: ctorSpec(nil, call("f")),
		},
	)
	ctx := context.Background()

	inst := f.construct(t, "M")
	assert.Equal(t, "r", f.takeOutput())

	impl, err := f.engine.Resolve(inst, "f")
	require.NoError(t, err)
	assert.Equal(t, "R", impl.Owner)

	require.NoError(t, f.engine.Call(ctx, inst, "f"))
	assert.Equal(t, "r", f.takeOutput())

	dispatch := f.recorder.Filter(ir.EventDispatch)
	require.Len(t, dispatch, 1)
	assert.Equal(t, "f -> R::f", dispatch[0].Detail)
}

func TestEngine_SelfCallingMethodFailsConstruction(t *testing.T) {
	f := newFixture(t,
		tagClass("P"),
		ir.ClassSpec{
			Name:         "A",
			Members:      []ir.MemberSpec{member("p", "P")},
			Constructors: ctorSpec([]ir.InitEntry{initArg("p", "p")}, call("f")),
			Methods:      map[string]ir.MethodSpec{"f": {Body: []ir.Action{call("f")}}},
		},
	)

	inst, err := f.engine.Construct(context.Background(), "A", Request{})
	assert.ErrorIs(t, err, ErrCallDepthExceeded)

	var lf *LifecycleFailure
	require.ErrorAs(t, err, &lf)
	assert.Equal(t, ir.StepBody, lf.Step)
	assert.Equal(t, "A", lf.Path)
	assert.Equal(t, PhaseFailed, inst.Phase())
	assert.Equal(t, "pP", f.recorder.Output(), "the built member is torn down")
	assert.Len(t, f.recorder.Filter(ir.EventDispatch), MaxCallDepth+1)
}

func TestEngine_SelfCallingMethodOnLiveObject(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{Name: "A", Methods: map[string]ir.MethodSpec{
			"f": {Body: []ir.Action{emit("."), call("f")}},
		}},
	)
	inst := f.construct(t, "A")

	err := f.engine.Call(context.Background(), inst, "f")
	assert.ErrorIs(t, err, ErrCallDepthExceeded)
	assert.Len(t, f.recorder.Output(), MaxCallDepth)
	assert.Equal(t, PhaseLive, inst.Phase())

	f.recorder.Reset()
	require.ErrorIs(t, f.engine.Call(context.Background(), inst, "f"), ErrCallDepthExceeded)
	assert.Len(t, f.recorder.Output(), MaxCallDepth, "depth is released after the error")
}

func TestEngine_ResolveOnFailedObject(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{
			Name:         "Bad",
			Constructors: ctorSpec(nil, fail("x")),
			Methods:      methods("f", "f"),
		},
	)

	inst, err := f.engine.Construct(context.Background(), "Bad", Request{})
	require.Error(t, err)

	_, err = f.engine.Resolve(inst, "f")
	assert.ErrorIs(t, err, ErrNotConstructed)
	assert.ErrorIs(t, f.engine.Call(context.Background(), inst, "f"), ErrNotConstructed)
}

func TestEngine_DestroyFailedObject(t *testing.T) {
	f := newFixture(t, throwingClass("Bad"))

	inst, err := f.engine.Construct(context.Background(), "Bad", Request{Arg: "z"})
	require.Error(t, err)
	assert.ErrorIs(t, f.engine.Destroy(context.Background(), inst), ErrNotConstructed)
}

func TestEngine_UnknownClassAndConstructor(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{Name: "A"},
		ir.ClassSpec{
			Name:         "B",
			Bases:        []ir.BaseSpec{base("A")},
			Constructors: ctorSpec([]ir.InitEntry{{Target: "A", Init: ir.InitSpec{Constructor: "nope"}}}),
		},
	)
	ctx := context.Background()

	_, err := f.engine.Construct(ctx, "Nope", Request{})
	assert.True(t, model.HasCode(err, model.ErrCodeUnknownClass))

	_, err = f.engine.Construct(ctx, "A", Request{Constructor: "nope"})
	assert.ErrorIs(t, err, ErrNoSuchConstructor)
	assert.False(t, IsLifecycleFailure(err), "nothing was built")

	_, err = f.engine.Construct(ctx, "B", Request{})
	assert.True(t, IsLifecycleFailure(err))
	assert.ErrorIs(t, err, ErrNoSuchConstructor)
}

func TestEngine_NestedMemberHasOwnDispatch(t *testing.T) {
	f := newFixture(t,
		ir.ClassSpec{
			Name:         "Inner",
			Constructors: ctorSpec(nil, call("f")),
			Methods:      methods("f", "i"),
		},
		ir.ClassSpec{
			Name:         "Outer",
			Members:      []ir.MemberSpec{member("in", "Inner")},
			Constructors: ctorSpec(nil, call("f")),
			Methods:      methods("f", "o"),
		},
	)

	inst := f.construct(t, "Outer")
	assert.Equal(t, "io", f.recorder.Output())

	for _, ev := range f.recorder.Events() {
		assert.Equal(t, inst.RunID(), ev.RunID, "nested objects share the run id")
	}
	nested, ok := inst.Member("Outer.in")
	require.True(t, ok)
	assert.Equal(t, "Outer.in", nested.Path())
}

func TestEngine_CancelledContext(t *testing.T) {
	f := newFixture(t, tagClass("P"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.engine.Construct(ctx, "P", Request{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_CancelMidConstructionUnwinds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	f := newFixtureFromDecls(t, model.ClassDecl{
		Name:    "S",
		Members: []model.MemberDecl{{Name: "a", Type: "int"}, {Name: "b", Type: "int"}},
		Constructors: map[string]model.Constructor{"default": {Inits: model.Inits{
			"a": func(model.Context) (model.Init, error) { cancel(); return model.Init{Arg: 1}, nil },
		}}},
	})

	inst, err := f.engine.Construct(ctx, "S", Request{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, IsLifecycleFailure(err))
	assert.Equal(t, ir.TornDown, inst.State("S.a"))
	assert.Equal(t, ir.InProgress, inst.State("S.b"))
}

func TestEngine_TraceSeqIsStrictlyIncreasing(t *testing.T) {
	f := newFixture(t, diamondSpecs()...)
	inst := f.construct(t, "M")
	require.NoError(t, f.engine.Destroy(context.Background(), inst))

	events := f.recorder.Events()
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Greater(t, events[i].Seq, events[i-1].Seq)
	}
	assert.Equal(t, "run-1", events[0].RunID)
}

func TestEngine_PlanAndSharedPlanner(t *testing.T) {
	f := newFixture(t, diamondSpecs()...)

	plan, err := f.engine.Plan("M")
	require.NoError(t, err)
	assert.Equal(t, ir.StepVirtualBase, plan.Steps[0].Kind)

	_, err = f.engine.Plan("Nope")
	assert.Error(t, err)
}
