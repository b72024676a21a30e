package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "mkp", cmd.Use)
	assert.Contains(t, cmd.Long, "gacha asset marketplace")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"init"}, {"list-item"}, {"purchase"}, {"gacha"}, {"create-gacha"},
		{"show"}, {"balance"}, {"holdings"}, {"log"},
		{"airdrop"}, {"mint-asset"}, {"seed"},
		{"replay"}, {"test"},
		{"snapshot", "export"}, {"snapshot", "push"}, {"snapshot", "list"}, {"snapshot", "restore"},
		{"keys", "new"}, {"keys", "address"},
		{"config", "show"},
	}

	for _, path := range commands {
		name := path[len(path)-1]
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"db", "program"} {
		f := cmd.PersistentFlags().Lookup(name)
		require.NotNil(t, f, name)
		assert.Equal(t, "", f.DefValue)
	}
}

func TestSignedCommandsTakeKeys(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"init", "list-item", "purchase", "gacha", "create-gacha", "seed"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			key := sub.Flags().Lookup("key")
			require.NotNil(t, key)
			assert.Equal(t, "k", key.Shorthand)
			assert.NotNil(t, sub.Flags().Lookup("key-hex"))
		})
	}
}

func TestGachaCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	gachaCmd, _, err := cmd.Find([]string{"gacha"})
	require.NoError(t, err)

	qty := gachaCmd.Flags().Lookup("qty")
	require.NotNil(t, qty)
	assert.Equal(t, "1", qty.DefValue)

	fee := gachaCmd.Flags().Lookup("fee")
	require.NotNil(t, fee)
	assert.Equal(t, "0", fee.DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "show"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestKeyPath(t *testing.T) {
	assert.Equal(t, "keys/alice.json", keyPath("keys", "alice"))
	assert.Equal(t, "other/bob.json", keyPath("keys", "other/bob.json"))
	assert.Equal(t, "bob.json", keyPath("keys", "bob.json"))
	assert.Equal(t, "", keyPath("keys", ""))
}
