package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/keys"
)

// KeyView describes a key file.
type KeyView struct {
	Name    string `json:"name,omitempty"`
	Path    string `json:"path"`
	Address string `json:"address"`
}

// NewKeysCommand creates the keys command group.
func NewKeysCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage encrypted signing keys",
		Long: `Signing keys live in the keys directory (keys.dir, MKP_KEYS_DIR) as
password-encrypted JSON files. The password comes from keys.password or
MKP_KEYS_PASSWORD.`,
	}
	cmd.AddCommand(newKeysNewCommand(rootOpts))
	cmd.AddCommand(newKeysAddressCommand(rootOpts))
	return cmd
}

func newKeysNewCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "new <name>",
		Short: "Generate a key and write it to the keys directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Keys.Password == "" {
				return NewExitError(ExitCommandError, "a key password is required: set keys.password or MKP_KEYS_PASSWORD")
			}

			path := keyPath(cfg.Keys.Dir, args[0])
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return WrapExitError(ExitCommandError, "failed to create keys directory", err)
			}
			key, err := keys.Generate()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to generate key", err)
			}
			if err := keys.WriteFile(path, key, cfg.Keys.Password); err != nil {
				return WrapExitError(ExitCommandError, "failed to write key", err)
			}

			view := KeyView{Name: args[0], Path: path, Address: crypto.PubkeyToAddress(key.PublicKey).Hex()}
			return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %s written to %s\n", view.Address, view.Path)
			})
		},
	}
}

func newKeysAddressCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "address <name|path>",
		Short: "Print the address of a key file",
		Long:  `Print the address recorded in a key file. No password is needed.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			path := keyPath(cfg.Keys.Dir, args[0])
			addr, err := keys.FileAddress(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read key file", err)
			}

			view := KeyView{Path: path, Address: addr.Hex()}
			return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) {
				fmt.Fprintln(w, view.Address)
			})
		},
	}
}
