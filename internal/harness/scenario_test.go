package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScenario_Full(t *testing.T) {
	data := []byte(`
name: parse_full
description: every step kind
cue: |
  class: B: {}
run_id_prefix: obj
steps:
  - construct: B
    as: b
    ctor: default
    arg: "1"
    args:
      m: x
      n: {ctor: named, arg: y}
  - call: {object: b, method: f}
    expect:
      error: NO_SUCH_METHOD
  - cast: {object: b, class: B, mode: pointer}
    expect:
      path: B
  - destroy_via: {object: b, class: B}
  - destroy: b
    expect:
      output: ""
      error: OBJECT_DESTROYED
assertions:
  - type: output
    equals: ""
  - type: trace_count
    match: {kind: dispatch}
    count: 1
`)
	s, err := ParseScenario(data)
	require.NoError(t, err)

	assert.Equal(t, "parse_full", s.Name)
	assert.Equal(t, "obj", s.RunIDPrefix)
	require.Len(t, s.Steps, 5)

	c := s.Steps[0]
	assert.Equal(t, "B", c.Construct)
	assert.Equal(t, "b", c.As)
	assert.Equal(t, "default", c.Constructor)
	assert.Equal(t, "1", c.Arg)
	assert.Equal(t, ArgSpec{Arg: "x"}, c.Args["m"])
	assert.Equal(t, ArgSpec{Constructor: "named", Arg: "y"}, c.Args["n"])

	assert.Equal(t, &CallStep{Object: "b", Method: "f"}, s.Steps[1].Call)
	assert.Equal(t, "NO_SUCH_METHOD", s.Steps[1].Expect.Error)
	assert.Equal(t, "pointer", s.Steps[2].Cast.Mode)
	assert.Equal(t, &ViaStep{Object: "b", Class: "B"}, s.Steps[3].DestroyVia)

	exp := s.Steps[4].Expect
	require.NotNil(t, exp.Output)
	assert.Equal(t, "", *exp.Output)

	require.Len(t, s.Assertions, 2)
	assert.Equal(t, AssertTraceCount, s.Assertions[1].Type)
	assert.Equal(t, "dispatch", s.Assertions[1].Match.Kind)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\ncue: x\nsteps: [{construct: A}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\ncue: x\nsteps: [{construct: A}]\n",
			wantErr: "description is required",
		},
		{
			name:    "no classes",
			yaml:    "name: n\ndescription: d\nsteps: [{construct: A}]\n",
			wantErr: "specs or cue is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\ncue: x\n",
			wantErr: "steps list is required",
		},
		{
			name:    "two ops in one step",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{construct: A, destroy: A}]\n",
			wantErr: "got 2",
		},
		{
			name:    "construct options on destroy",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{destroy: A, as: a}]\n",
			wantErr: "only apply to construct",
		},
		{
			name:    "bad cast mode",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{cast: {object: a, class: B, mode: value}}]\n",
			wantErr: "cast mode must be ref or pointer",
		},
		{
			name:    "call without method",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{call: {object: a}}]\n",
			wantErr: "call needs object and method",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{construct: A}]\nassertions: [{type: trace_sum}]\n",
			wantErr: `unknown assertion type "trace_sum"`,
		},
		{
			name:    "trace_order with one event",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{construct: A}]\nassertions: [{type: trace_order, events: [{kind: output}]}]\n",
			wantErr: "at least two events",
		},
		{
			name:    "unknown field",
			yaml:    "name: n\ndescription: d\ncue: x\nsteps: [{construct: A}]\nasertions: []\n",
			wantErr: "failed to parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarioWithBasePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.cue"), []byte("class: A: {}\n"), 0644))
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: s\ndescription: d\nspecs: [a.cue]\nsteps: [{construct: A}]\n"), 0644))

	s, err := LoadScenarioWithBasePath(path, dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.cue")}, s.Specs)

	_, err = LoadScenarioWithBasePath(path, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "spec file not found")

	_, err = LoadScenario(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}
