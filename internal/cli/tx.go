package cli

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/engine"
	"github.com/tungla20/Solana-MKP/internal/host"
	"github.com/tungla20/Solana-MKP/internal/ir"
	"github.com/tungla20/Solana-MKP/internal/market"
)

// ReceiptView is the printed form of a logged transaction.
type ReceiptView struct {
	TxID      string   `json:"tx_id"`
	Seq       int64    `json:"seq"`
	Outcome   string   `json:"outcome"`
	Message   string   `json:"message,omitempty"`
	StateHash string   `json:"state_hash,omitempty"`
	EntryHash string   `json:"entry_hash"`
	Effects   ir.Array `json:"effects"`
}

func newReceiptView(r *host.Receipt) ReceiptView {
	return ReceiptView{
		TxID:      r.TxID,
		Seq:       r.Seq,
		Outcome:   r.Outcome,
		Message:   r.Message,
		StateHash: r.StateHash,
		EntryHash: r.EntryHash,
		Effects:   engine.DescribeEffects(r.Effects),
	}
}

func (v ReceiptView) writeText(w io.Writer) {
	fmt.Fprintf(w, "✓ %s accepted (seq %d)\n", v.TxID, v.Seq)
	for _, e := range v.Effects {
		obj := e.(ir.Object)
		fmt.Fprintf(w, "  %s", obj["kind"])
		for _, k := range obj.SortedKeys() {
			if k == "kind" {
				continue
			}
			fmt.Fprintf(w, " %s=%v", k, obj[k])
		}
		fmt.Fprintln(w)
	}
}

// submit signs call with key, executes it and prints the receipt.
// A rejected instruction exits with ExitFailure.
func submit(ctx context.Context, cmd *cobra.Command, opts *RootOptions, e *env, call host.Call, key *ecdsa.PrivateKey) (*host.Receipt, error) {
	tx, err := call.Transaction(e.rt.NewTxID(), e.rt.Deployment().Program)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build transaction", err)
	}
	if err := tx.Sign(key); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to sign transaction", err)
	}

	receipt, err := e.rt.Execute(ctx, tx)
	if receipt == nil {
		return nil, WrapExitError(ExitCommandError, "transaction failed", err)
	}

	view := newReceiptView(receipt)
	f := opts.formatter(cmd)
	if !receipt.OK() {
		return receipt, f.Fail(ExitFailure, receipt.Outcome, receipt.Message, view)
	}
	return receipt, f.Emit(view, view.writeText)
}

// txCommand is the shared shape of the signed instruction commands.
type txCommand struct {
	opts   *RootOptions
	signer signerFlags
}

// run opens the environment, loads the signer and hands both to build.
func (c *txCommand) run(cmd *cobra.Command, build func(ctx context.Context, e *env, signer common.Address) (host.Call, error)) error {
	ctx := commandContext(cmd)
	e, err := c.opts.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	key, err := c.signer.load(e.cfg)
	if err != nil {
		return err
	}
	signer := crypto.PubkeyToAddress(key.PublicKey)

	call, err := build(ctx, e, signer)
	if err != nil {
		return err
	}
	_, err = submit(ctx, cmd, c.opts, e, call, key)
	return err
}

// registry loads the decoded registry or explains that it is missing.
func (e *env) registry(ctx context.Context) (*market.State, error) {
	st, err := e.rt.State(ctx)
	if errors.Is(err, market.ErrUninitialized) {
		return nil, NewExitError(ExitCommandError, "registry not initialized: run mkp init first")
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read registry", err)
	}
	return st, nil
}

func parseAmountFlag(name, value string) (*uint256.Int, error) {
	v, err := market.ParseAmount(value)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("--%s: %v", name, err))
	}
	return v, nil
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	c := &txCommand{opts: rootOpts}
	var listingPrice string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the registry",
		Long: `Create the marketplace registry. The signer becomes the market owner and
pays for the registry account.

Examples:
  mkp init --listing-price 1000 --key admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			price, err := parseAmountFlag("listing-price", listingPrice)
			if err != nil {
				return err
			}
			return c.run(cmd, func(_ context.Context, e *env, signer common.Address) (host.Call, error) {
				return e.rt.Deployment().InitState(signer, price), nil
			})
		},
	}
	cmd.Flags().StringVar(&listingPrice, "listing-price", "0", "fee paid to the market owner on every sale")
	c.signer.register(cmd)
	return cmd
}

// NewListItemCommand creates the list-item command.
func NewListItemCommand(rootOpts *RootOptions) *cobra.Command {
	c := &txCommand{opts: rootOpts}
	var (
		assetProgram, asset, price string
		fileName, description      string
		cashBack                   uint8
	)

	cmd := &cobra.Command{
		Use:   "list-item",
		Short: "List an asset for sale",
		Long: `List an asset for sale at a fixed price. The asset moves into market custody.

Examples:
  mkp list-item --asset-program 0x.. --asset 0x.. --price 5000 --file-name sword.png --key alice`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := parseAddressArg("--asset-program", assetProgram)
			if err != nil {
				return err
			}
			id, err := parseAddressArg("--asset", asset)
			if err != nil {
				return err
			}
			p, err := parseAmountFlag("price", price)
			if err != nil {
				return err
			}
			return c.run(cmd, func(_ context.Context, e *env, signer common.Address) (host.Call, error) {
				return e.rt.Deployment().CreateMarketItem(signer, host.Listing{
					AssetProgram:    program,
					AssetID:         id,
					Price:           p,
					FileName:        fileName,
					Description:     description,
					CashBackPercent: cashBack,
				}), nil
			})
		},
	}
	cmd.Flags().StringVar(&assetProgram, "asset-program", "", "asset program id (required)")
	cmd.Flags().StringVar(&asset, "asset", "", "asset id (required)")
	cmd.Flags().StringVar(&price, "price", "", "sale price (required)")
	cmd.Flags().StringVar(&fileName, "file-name", "", "display file name")
	cmd.Flags().StringVar(&description, "description", "", "display description")
	cmd.Flags().Uint8Var(&cashBack, "cash-back", 0, "cash back percent, below 100")
	_ = cmd.MarkFlagRequired("asset-program")
	_ = cmd.MarkFlagRequired("asset")
	_ = cmd.MarkFlagRequired("price")
	c.signer.register(cmd)
	return cmd
}

// NewPurchaseCommand creates the purchase command.
func NewPurchaseCommand(rootOpts *RootOptions) *cobra.Command {
	c := &txCommand{opts: rootOpts}
	var price string

	cmd := &cobra.Command{
		Use:   "purchase <item-id>",
		Short: "Buy a listed item",
		Long: `Buy a listed item at its price. The seller receives the price and the
market owner the listing price.

Exit codes:
  0 - Purchase accepted
  1 - Purchase rejected (already sold, price changed, ...)
  2 - Command error

Examples:
  mkp purchase 3 --key bob
  mkp purchase 3 --price 5000 --key bob`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid item id %q", args[0]))
			}
			var asserted *uint256.Int
			if price != "" {
				if asserted, err = parseAmountFlag("price", price); err != nil {
					return err
				}
			}
			return c.run(cmd, func(ctx context.Context, e *env, signer common.Address) (host.Call, error) {
				st, err := e.registry(ctx)
				if err != nil {
					return host.Call{}, err
				}
				var call host.Call
				if asserted != nil {
					call, err = e.rt.Deployment().PurchaseSaleAt(st, signer, id, asserted)
				} else {
					call, err = e.rt.Deployment().PurchaseSale(st, signer, id)
				}
				if err != nil {
					return host.Call{}, NewExitError(ExitFailure, err.Error())
				}
				return call, nil
			})
		},
	}
	cmd.Flags().StringVar(&price, "price", "", "asserted price (defaults to the listed price)")
	c.signer.register(cmd)
	return cmd
}

// NewGachaCommand creates the gacha command.
func NewGachaCommand(rootOpts *RootOptions) *cobra.Command {
	c := &txCommand{opts: rootOpts}
	var (
		assetProgram, price, fee string
		qty                      uint8
	)

	cmd := &cobra.Command{
		Use:   "gacha",
		Short: "Draw owned items at a price point",
		Long: `Draw qty items at random among owned items listed at --price. The fee
goes to the seller of the first eligible item.

Examples:
  mkp gacha --asset-program 0x.. --qty 2 --price 5000 --fee 100 --key carol`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := parseAddressArg("--asset-program", assetProgram)
			if err != nil {
				return err
			}
			p, err := parseAmountFlag("price", price)
			if err != nil {
				return err
			}
			f, err := parseAmountFlag("fee", fee)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, e *env, signer common.Address) (host.Call, error) {
				st, err := e.registry(ctx)
				if err != nil {
					return host.Call{}, err
				}
				return e.rt.Deployment().Gacha(st, signer, program, qty, p, f), nil
			})
		},
	}
	cmd.Flags().StringVar(&assetProgram, "asset-program", "", "asset program id (required)")
	cmd.Flags().Uint8Var(&qty, "qty", 1, "number of items to draw")
	cmd.Flags().StringVar(&price, "price", "", "price point of the draw (required)")
	cmd.Flags().StringVar(&fee, "fee", "0", "fee paid to the first eligible seller")
	_ = cmd.MarkFlagRequired("asset-program")
	_ = cmd.MarkFlagRequired("price")
	c.signer.register(cmd)
	return cmd
}

// NewCreateGachaCommand creates the create-gacha command.
func NewCreateGachaCommand(rootOpts *RootOptions) *cobra.Command {
	c := &txCommand{opts: rootOpts}
	var (
		assetProgram string
		qty          uint8
	)

	cmd := &cobra.Command{
		Use:   "create-gacha",
		Short: "Draw owned items into the market owner's pool",
		Long: `Draw qty owned items at random and reassign them to the market owner.
The signer pays the listing price per item drawn.

Examples:
  mkp create-gacha --asset-program 0x.. --qty 3 --key admin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := parseAddressArg("--asset-program", assetProgram)
			if err != nil {
				return err
			}
			return c.run(cmd, func(ctx context.Context, e *env, signer common.Address) (host.Call, error) {
				st, err := e.registry(ctx)
				if err != nil {
					return host.Call{}, err
				}
				return e.rt.Deployment().CreateGacha(st, signer, program, qty), nil
			})
		},
	}
	cmd.Flags().StringVar(&assetProgram, "asset-program", "", "asset program id (required)")
	cmd.Flags().Uint8Var(&qty, "qty", 1, "number of items to draw")
	_ = cmd.MarkFlagRequired("asset-program")
	c.signer.register(cmd)
	return cmd
}
