package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ctorder/internal/compiler"
)

func TestValidateValidSpecs(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{sharedSpecsDir})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ All 18 class(es) valid")
}

func TestValidateValidSpecsJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{sharedSpecsDir})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, sharedClassCount, resp.Data.Classes)
	assert.Empty(t, resp.Data.Errors)
}

func TestValidateInvalidSpecs(t *testing.T) {
	tests := []struct {
		name      string
		src       string
		wantCode  string
		wantClass string
	}{
		{
			name: "duplicate member",
			src: `
package x

class: P: {}
class: C: members: [{name: "a", type: "P"}, {name: "a", type: "P"}]
`,
			wantCode:  compiler.ErrDuplicateMember,
			wantClass: "C",
		},
		{
			name: "unknown initializer target",
			src: `
package x

class: C: constructors: default: init: nope: "1"
`,
			wantCode:  compiler.ErrUnknownInitTarget,
			wantClass: "C",
		},
		{
			name: "unknown delegation target",
			src: `
package x

class: C: constructors: default: delegate: {ctor: "missing"}
`,
			wantCode:  compiler.ErrUnknownCtor,
			wantClass: "C",
		},
		{
			name: "inheritance cycle",
			src: `
package x

class: A: bases: ["B"]
class: B: bases: ["A"]
`,
			wantCode: ErrCodeModel,
		},
		{
			name: "compile error",
			src: `
package x

class: C: destructor: virtual: "yes"
`,
			wantCode: ErrCodeCompileFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeSpecs(t, map[string]string{"specs.cue": tt.src})

			buf := &bytes.Buffer{}
			cmd := NewValidateCommand(&RootOptions{Format: "json"})
			cmd.SetOut(buf)
			cmd.SetArgs([]string{dir})

			err := cmd.Execute()
			require.Error(t, err)
			assert.Equal(t, ExitFailure, GetExitCode(err))

			var resp struct {
				Status string           `json:"status"`
				Data   ValidationResult `json:"data"`
				Error  *CLIError        `json:"error"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
			assert.Equal(t, "error", resp.Status)
			assert.False(t, resp.Data.Valid)
			require.NotEmpty(t, resp.Data.Errors)
			assert.Equal(t, tt.wantCode, resp.Data.Errors[0].Code)
			if tt.wantClass != "" {
				assert.Equal(t, tt.wantClass, resp.Data.Errors[0].Class)
			}
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestValidateCycleText(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"specs.cue": `
package x

class: A: members: [{name: "b", type: "B"}]
class: B: bases: ["A"]
`})

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	require.Error(t, cmd.Execute())
	output := buf.String()
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, "[E009]")
	assert.Contains(t, output, "CYCLE")
}

func TestValidateNonExistentDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/directory"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E005]")
}
