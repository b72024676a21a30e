package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungla20/Solana-MKP/internal/snapshot"
)

// exportSnapshot writes a snapshot of the env's database and returns its path.
func (c *cliEnv) exportSnapshot() string {
	c.t.Helper()
	path := filepath.Join(c.t.TempDir(), "ledger.snap.zst")
	c.mustRun("snapshot", "export", "--out", path)
	return path
}

func TestSnapshotExportRestore(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()
	c.mustRun("purchase", "1", "--key-hex", keyHex("buyer"))

	path := filepath.Join(t.TempDir(), "ledger.snap.zst")
	resp, err := c.runJSON("snapshot", "export", "--out", path)
	require.NoError(t, err)
	view := resp.Data.(map[string]any)
	assert.Equal(t, float64(6), view["seq"])
	assert.Equal(t, c.program, view["program"])
	assert.Equal(t, path, view["location"])

	snap, err := snapshot.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, int64(6), snap.Header.Seq)

	restored := newCLIEnv(t)
	out := restored.mustRun("snapshot", "restore", path)
	assert.Contains(t, out, "restored seq 6")

	for _, name := range []string{"admin", "buyer", "seller"} {
		want, err := c.runJSON("balance", addr(name))
		require.NoError(t, err)
		got, err := restored.runJSON("balance", addr(name))
		require.NoError(t, err)
		assert.Equal(t, want.Data, got.Data, name)
	}

	resp, err = restored.runJSON("show", "--item", "1")
	require.NoError(t, err)
	assert.Equal(t, true, resp.Data.(map[string]any)["sold"])

	// The restored ledger continues numbering after the snapshot.
	resp, err = restored.runJSON("airdrop", addr("alice"), "1")
	require.NoError(t, err)
	assert.Equal(t, float64(7), resp.Data.(map[string]any)["seq"])
}

func TestSnapshotExportAfterRestoreKeepsPosition(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()

	restored := newCLIEnv(t)
	restored.mustRun("snapshot", "restore", c.exportSnapshot())

	resp, err := restored.runJSON("snapshot", "export", "--out", filepath.Join(t.TempDir(), "again.snap.zst"))
	require.NoError(t, err)
	assert.Equal(t, float64(5), resp.Data.(map[string]any)["seq"])
}

func TestSnapshotRestoreIntoNonEmptyDatabase(t *testing.T) {
	c := newCLIEnv(t)
	c.listSword()
	path := c.exportSnapshot()

	resp, err := c.runJSON("snapshot", "restore", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_RESTORE", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "not empty")
}

func TestSnapshotRestoreArguments(t *testing.T) {
	c := newCLIEnv(t)

	_, err := c.run("snapshot", "restore")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = c.run("snapshot", "restore", "a.snap.zst", "--from-s3", "snapshots/a.snap.zst")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "either a snapshot file or --from-s3")

	_, err = c.run("snapshot", "restore", filepath.Join(t.TempDir(), "missing.snap.zst"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read snapshot")
}
