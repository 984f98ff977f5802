package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/ctorder/internal/ir"
)

func TestPlanDiamondText(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{sharedSpecsDir, "M"})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "Plan for M (most-derived)")
	assert.Contains(t, output, `=== Construction ===
  1. virtual_base V (V)
  2. direct_base L (L)
  3. direct_base R (R)
  4. member m (P)
  5. body M
`)
	assert.Contains(t, output, `=== Destruction ===
  1. body ~M
  2. member m (P)
  3. direct_base R (R)
  4. direct_base L (L)
  5. virtual_base V (V)
`)
	assert.NotContains(t, output, "Shared virtual bases")
}

func TestPlanLayerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{sharedSpecsDir, "L", "--layer"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   PlanResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	want := ir.Plan{
		Class:      "L",
		Steps:      []ir.Step{{Kind: ir.StepMember, Target: "l", Class: "P"}},
		References: []string{"V"},
	}
	if diff := cmp.Diff(want, resp.Data.Plan); diff != "" {
		t.Errorf("layer plan mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"V"}, resp.Data.VirtualBases)

	hash, err := ir.PlanHash(want)
	require.NoError(t, err)
	assert.Equal(t, hash, resp.Data.PlanHash)
}

func TestPlanLayerTextListsReferences(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{sharedSpecsDir, "R", "--layer"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "Plan for R (base sub-object)")
	assert.Contains(t, buf.String(), "Shared virtual bases (built by the most-derived class): [V]")
}

func TestPlanUnknownClass(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlanCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{sharedSpecsDir, "Nope"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}
