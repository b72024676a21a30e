package cli

import (
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/host"
)

// NewAirdropCommand creates the airdrop command.
func NewAirdropCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "airdrop <address> <amount>",
		Short: "Credit native value to an account (development ledgers)",
		Long: `Credit native value to an account. Airdrops are logged, so replay
reproduces the balances they create.

Examples:
  mkp airdrop 0x71C7656EC7ab88b098defB751B7401B5f6d8976F 1000000`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			to, err := parseAddressArg("address", args[0])
			if err != nil {
				return err
			}
			amount, err := parseAmountArg("amount", args[1])
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			receipt, err := e.rt.Airdrop(ctx, to, amount)
			if err != nil {
				return WrapExitError(ExitCommandError, "airdrop failed", err)
			}
			return emitReceipt(cmd, rootOpts, receipt)
		},
	}
}

// NewMintAssetCommand creates the mint-asset command.
func NewMintAssetCommand(rootOpts *RootOptions) *cobra.Command {
	var assetProgram, asset, holder string

	cmd := &cobra.Command{
		Use:   "mint-asset",
		Short: "Create an asset held by an account (development ledgers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := parseAddressArg("--asset-program", assetProgram)
			if err != nil {
				return err
			}
			id, err := parseAddressArg("--asset", asset)
			if err != nil {
				return err
			}
			to, err := parseAddressArg("--holder", holder)
			if err != nil {
				return err
			}

			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			receipt, err := e.rt.MintAsset(ctx, program, id, to)
			if err != nil {
				return WrapExitError(ExitCommandError, "mint failed", err)
			}
			return emitReceipt(cmd, rootOpts, receipt)
		},
	}
	cmd.Flags().StringVar(&assetProgram, "asset-program", "", "asset program id (required)")
	cmd.Flags().StringVar(&asset, "asset", "", "asset id (required)")
	cmd.Flags().StringVar(&holder, "holder", "", "initial holder (required)")
	_ = cmd.MarkFlagRequired("asset-program")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("holder")
	return cmd
}

func emitReceipt(cmd *cobra.Command, opts *RootOptions, r *host.Receipt) error {
	view := newReceiptView(r)
	return opts.formatter(cmd).Emit(view, view.writeText)
}
