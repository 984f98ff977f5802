package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ctorder/internal/engine"
	"github.com/roach88/ctorder/internal/ir"
	"github.com/roach88/ctorder/internal/model"
)

var _ engine.RunIDGenerator = (*SequentialRunIDs)(nil)

func TestSequentialRunIDs(t *testing.T) {
	gen := NewSequentialRunIDs("scenario")
	assert.Equal(t, "scenario-1", gen.Generate())
	assert.Equal(t, "scenario-2", gen.Generate())

	gen.Reset()
	assert.Equal(t, "scenario-1", gen.Generate())
}

func TestSequentialRunIDs_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "run-1", NewSequentialRunIDs("").Generate())
}

// Two engines fed the same deterministic sources produce the same trace.
func TestDeterministicSources_ReproduceTrace(t *testing.T) {
	reg := model.NewRegistry()
	require.NoError(t, reg.DeclareAll(model.FromSpecs([]ir.ClassSpec{
		{Name: "B"},
		{Name: "D", Bases: []ir.BaseSpec{{Class: "B"}}},
	})))

	trace := func() []ir.Event {
		rec := engine.NewRecorder()
		e := engine.New(reg,
			engine.WithClock(NewDeterministicClock()),
			engine.WithRunIDs(NewSequentialRunIDs("")),
			engine.WithObserver(rec),
		)
		inst, err := e.Construct(context.Background(), "D", engine.Request{})
		require.NoError(t, err)
		require.NoError(t, e.Destroy(context.Background(), inst))
		return rec.Events()
	}

	first, second := trace(), trace()
	require.NotEmpty(t, first)
	assert.Equal(t, first, second)
	assert.Equal(t, "run-1", first[0].RunID)
	assert.Equal(t, int64(1), first[0].Seq)
}
