package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungla20/Solana-MKP/internal/store"
)

func TestReplayCommand_Deterministic(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()
	c.mustRun("purchase", "1", "--key-hex", keyHex("buyer"))
	_, err := c.run("purchase", "1", "--key-hex", keyHex("buyer"))
	require.Error(t, err)

	resp, err := c.runJSON("replay")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)

	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(7), data["entries"])
	assert.Equal(t, true, data["deterministic"])
	assert.Empty(t, data["mismatches"])
}

func TestReplayCommand_TextOutput(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()

	out := c.mustRun("replay")
	assert.Contains(t, out, "Replay Summary: 5 entries")
	assert.Contains(t, out, "✓ Every entry reproduced exactly")
}

func TestReplayCommand_EmptyLog(t *testing.T) {
	c := newCLIEnv(t)

	resp, err := c.runJSON("replay")
	require.NoError(t, err)
	data := resp.Data.(map[string]any)
	assert.Equal(t, float64(0), data["entries"])
	assert.Equal(t, true, data["deterministic"])
}

func TestReplayCommand_DetectsTampering(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()

	st, err := store.Open(c.db)
	require.NoError(t, err)
	_, err = st.DB().ExecContext(context.Background(),
		`UPDATE tx_log SET outcome = 'InvalidPrice' WHERE seq = 5`)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	resp, err := c.runJSON("replay")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_DETERMINISM", resp.Error.Code)

	details := resp.Error.Details.(map[string]any)
	mismatches := details["mismatches"].([]any)
	require.NotEmpty(t, mismatches)
	assert.Contains(t, mismatches[0], "seq 5")
	assert.Contains(t, mismatches[0], "outcome")
}

func TestReplayCommand_RestoredDatabase(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()
	snap := c.exportSnapshot()

	restored := newCLIEnv(t)
	restored.mustRun("snapshot", "restore", snap)

	_, err := restored.run("replay")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "restored from a snapshot at seq 5")
}
