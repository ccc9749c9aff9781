package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	harnessScenarios = "../harness/testdata/scenarios"
	harnessGolden    = "../harness/testdata/golden"
)

func TestScenarioCommand_CheckedInScenarios(t *testing.T) {
	out, _, err := executeCommand(t, "scenario", harnessScenarios, "--golden", harnessGolden)
	require.NoError(t, err, out)

	assert.Contains(t, out, "✓ five_users")
	assert.Contains(t, out, "✓ partial_failure")
	assert.Contains(t, out, "Scenario Summary: 5 passed, 0 failed, 5 total")
	assert.Contains(t, out, "✓ All scenarios passed")
}

func TestScenarioCommand_FilterJSON(t *testing.T) {
	out, _, err := executeCommand(t, "scenario", harnessScenarios,
		"--golden", harnessGolden, "--filter", "*_failure", "--format", "json")
	require.NoError(t, err)

	var summary ScenarioSummary
	resp := decodeData(t, out, &summary)
	assert.Equal(t, "ok", resp.Status)
	require.Equal(t, 1, summary.Total)
	assert.Equal(t, "partial_failure", summary.Scenarios[0].Name)
	assert.Equal(t, "match", summary.Scenarios[0].Golden)
}

func TestScenarioCommand_UpdateThenCompare(t *testing.T) {
	golden := filepath.Join(t.TempDir(), "golden")

	out, _, err := executeCommand(t, "scenario", harnessScenarios, "--golden", golden, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "(golden updated)")

	written, err := os.ReadFile(filepath.Join(golden, "five_users.golden"))
	require.NoError(t, err)
	checkedIn, err := os.ReadFile(filepath.Join(harnessGolden, "five_users.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(checkedIn), string(written))

	_, _, err = executeCommand(t, "scenario", harnessScenarios, "--golden", golden)
	require.NoError(t, err)
}

func TestScenarioCommand_MissingGoldenStillPasses(t *testing.T) {
	out, _, err := executeCommand(t, "scenario", harnessScenarios,
		"--golden", t.TempDir(), "--filter", "five_users", "--format", "json")
	require.NoError(t, err)

	var summary ScenarioSummary
	decodeData(t, out, &summary)
	require.Len(t, summary.Scenarios, 1)
	assert.True(t, summary.Scenarios[0].Pass)
	assert.Equal(t, "missing", summary.Scenarios[0].Golden)
}

func TestScenarioCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	content := `
name: wrong_expectation
description: "expects a user that does not exist"
query: "SELECT name FROM users WHERE id = ?"
expect:
  values: [user1, user2, user3, user4, user5, user6]
  failures: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(content), 0o644))

	out, _, err := executeCommand(t, "scenario", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_expectation")
	assert.Contains(t, out, "all_or_partial: values")
	assert.Contains(t, out, "1 failed")
}

func TestScenarioCommand_GoldenMismatch(t *testing.T) {
	golden := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(golden, "five_users.golden"), []byte("{}\n"), 0o644))

	out, _, err := executeCommand(t, "scenario", harnessScenarios, "--golden", golden, "--filter", "five_users")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestScenarioCommand_Empty(t *testing.T) {
	out, _, err := executeCommand(t, "scenario", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestScenarioCommand_CommandErrors(t *testing.T) {
	_, _, err := executeCommand(t, "scenario", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: Bad\n"), 0o644))
	out, _, err := executeCommand(t, "scenario", dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	resp := decodeData(t, out, nil)
	assert.Equal(t, CodeSchema, resp.Error.Code)

	_, _, err = executeCommand(t, "scenario")
	assert.Error(t, err)
}
