package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// copyHarnessFixtures copies the harness scenarios and goldens into a temp
// tree laid out as <root>/scenarios and <root>/golden.
func copyHarnessFixtures(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, sub := range []string{"scenarios", "golden"} {
		src := filepath.Join("..", "harness", "testdata", sub)
		dst := filepath.Join(root, sub)
		require.NoError(t, os.MkdirAll(dst, 0o755))

		entries, err := os.ReadDir(src)
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(src, e.Name()))
			require.NoError(t, err)
			require.NoError(t, os.WriteFile(filepath.Join(dst, e.Name()), data, 0o644))
		}
	}
	return root
}

func runTestCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"test"}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

func TestTestCommandMissingArgs(t *testing.T) {
	_, err := runTestCommand(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	_, err := runTestCommand(t, "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	root := copyHarnessFixtures(t)

	out, err := runTestCommand(t, filepath.Join(root, "scenarios"))
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ gacha_draw")
	assert.Contains(t, out, "✓ purchase_flow")
	assert.Contains(t, out, "✓ rejections")
	assert.Contains(t, out, "Test Summary: 3 passed, 0 failed, 3 total")
}

func TestTestCommandFilter(t *testing.T) {
	root := copyHarnessFixtures(t)

	out, err := runTestCommand(t, filepath.Join(root, "scenarios"), "--filter", "gacha*", "--format", "json")
	require.NoError(t, err, out)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), data["total"])
	scenarios := data["scenarios"].([]any)
	require.Len(t, scenarios, 1)
	assert.Equal(t, "gacha_draw", scenarios[0].(map[string]any)["name"])
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	root := copyHarnessFixtures(t)
	golden := filepath.Join(root, "golden", "purchase_flow.golden")
	require.NoError(t, os.WriteFile(golden, []byte(`{"scenario_name":"purchase_flow","trace":[]}`), 0o644))

	out, err := runTestCommand(t, filepath.Join(root, "scenarios"), "--filter", "purchase_flow")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ purchase_flow")
	assert.Contains(t, out, "trace does not match golden file")

	// --update rewrites the golden, after which the run passes.
	out, err = runTestCommand(t, filepath.Join(root, "scenarios"), "--filter", "purchase_flow", "--update")
	require.NoError(t, err, out)
	assert.Contains(t, out, "(golden updated)")

	updated, err := os.ReadFile(golden)
	require.NoError(t, err)
	original, err := os.ReadFile(filepath.Join("..", "harness", "testdata", "golden", "purchase_flow.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(original), string(updated))
}

func TestTestCommandFailingScenario(t *testing.T) {
	dir := t.TempDir()
	scenario := `name: wrong_balance
description: Asserts a balance that is not there.
setup:
  - airdrop: {to: admin, amount: 10000}
flow:
  - init_state: {authority: admin, listing_price: 1}
assertions:
  - {type: balance, account: admin, equals: 1}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))

	out, err := runTestCommand(t, dir, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
}

func TestTestCommandEmptyDir(t *testing.T) {
	out, err := runTestCommand(t, t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
