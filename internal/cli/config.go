package cli

import (
	"io"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/config"
)

// NewConfigCommand creates the config command group.
func NewConfigCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the merged configuration with secrets redacted",
		Long: `Print the configuration after defaults, the config file, .env and MKP_*
environment variables and command-line overrides are applied. Passwords and
access keys are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			safe := config.Redacted(cfg)
			return rootOpts.formatter(cmd).Emit(safe, func(w io.Writer) {
				_ = toml.NewEncoder(w).Encode(safe)
			})
		},
	})
	return cmd
}
