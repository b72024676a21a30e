package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/catalog"
	"github.com/tungla20/Solana-MKP/internal/host"
)

// SeededItem is one catalog listing that was created.
type SeededItem struct {
	Name string `json:"name"`
	Item uint64 `json:"item"`
	TxID string `json:"tx_id"`
}

// SeedResult is the output of the seed command.
type SeedResult struct {
	Seller string       `json:"seller"`
	Items  []SeededItem `json:"items"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		signer signerFlags
		mint   bool
	)

	cmd := &cobra.Command{
		Use:   "seed <catalog.cue>",
		Short: "List every asset in a catalog",
		Long: `Compile a CUE catalog and submit one create_market_item per listing, in
listing name order, signed by the seller key. Seeding stops at the first
rejected listing; listings created before it stay in the registry.

With --mint each asset is first minted to the seller (development ledgers).

Examples:
  mkp seed catalog.cue --key alice
  mkp seed catalog.cue --key-hex 0x... --mint`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			listings, err := catalog.Load(args[0])
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load catalog", err)
			}

			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			key, err := signer.load(e.cfg)
			if err != nil {
				return err
			}
			seller := crypto.PubkeyToAddress(key.PublicKey)
			result := SeedResult{Seller: seller.Hex(), Items: []SeededItem{}}
			f := rootOpts.formatter(cmd)

			for _, l := range listings {
				if mint {
					if _, err := e.rt.MintAsset(ctx, l.AssetProgram, l.AssetID, seller); err != nil {
						return WrapExitError(ExitCommandError, fmt.Sprintf("listing %s: mint failed", l.Name), err)
					}
				}

				call := e.rt.Deployment().CreateMarketItem(seller, host.Listing{
					AssetProgram:    l.AssetProgram,
					AssetID:         l.AssetID,
					Price:           &l.Price,
					FileName:        l.FileName,
					Description:     l.Description,
					CashBackPercent: l.CashBackPercent,
				})
				tx, err := call.Transaction(e.rt.NewTxID(), e.rt.Deployment().Program)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to build transaction", err)
				}
				if err := tx.Sign(key); err != nil {
					return WrapExitError(ExitCommandError, "failed to sign transaction", err)
				}

				receipt, err := e.rt.Execute(ctx, tx)
				if receipt == nil {
					return WrapExitError(ExitCommandError, fmt.Sprintf("listing %s failed", l.Name), err)
				}
				if !receipt.OK() {
					return f.Fail(ExitFailure, receipt.Outcome,
						fmt.Sprintf("listing %s rejected: %s", l.Name, receipt.Message), result)
				}

				st, err := e.registry(ctx)
				if err != nil {
					return err
				}
				result.Items = append(result.Items, SeededItem{Name: l.Name, Item: st.ItemCount, TxID: receipt.TxID})
				e.logger.Debug("listing created", "name", l.Name, "item", st.ItemCount)
			}

			return f.Emit(result, func(w io.Writer) {
				fmt.Fprintf(w, "✓ %d listings created for %s\n", len(result.Items), result.Seller)
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				for _, it := range result.Items {
					fmt.Fprintf(tw, "  %d\t%s\t%s\n", it.Item, it.Name, it.TxID)
				}
				tw.Flush()
			})
		},
	}
	signer.register(cmd)
	cmd.Flags().BoolVar(&mint, "mint", false, "mint each asset to the seller before listing")
	return cmd
}
