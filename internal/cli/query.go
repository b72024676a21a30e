package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	var itemID uint64

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the registry",
		Long: `Show the registry header and its items, or a single item with --item.

Examples:
  mkp show
  mkp show --item 3 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			st, err := e.registry(ctx)
			if err != nil {
				return err
			}
			rec := st.ToRecord()
			f := rootOpts.formatter(cmd)

			if itemID != 0 {
				if _, ok := st.Item(itemID); !ok {
					return f.Fail(ExitFailure, "NoSuchItem",
						fmt.Sprintf("no item %d (registry has %d items)", itemID, len(st.Items)), nil)
				}
				item := rec.Items[itemID-1]
				return f.Emit(item, func(w io.Writer) { writeItems(w, []market.ItemRecord{item}) })
			}

			return f.Emit(rec, func(w io.Writer) {
				fmt.Fprintf(w, "owner:         %s\n", rec.Owner)
				fmt.Fprintf(w, "listing price: %s\n", rec.ListingPrice)
				fmt.Fprintf(w, "items:         %d (%d sold)\n", rec.ItemCount, rec.SoldCount)
				if len(rec.Items) > 0 {
					fmt.Fprintln(w)
					writeItems(w, rec.Items)
				}
			})
		},
	}
	cmd.Flags().Uint64Var(&itemID, "item", 0, "show a single item")
	return cmd
}

func writeItems(w io.Writer, items []market.ItemRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRICE\tSOLD\tGACHA\tSELLER\tOWNER\tFILE")
	for _, it := range items {
		owner := it.Owner
		if owner == "" {
			owner = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%t\t%t\t%s\t%s\t%s\n",
			it.ID, it.Price, it.Sold, it.Gacha, it.Seller, owner, it.FileName)
	}
	tw.Flush()
}

// BalanceView is the output of the balance command.
type BalanceView struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// NewBalanceCommand creates the balance command.
func NewBalanceCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <address>",
		Short: "Show an account's native balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg("address", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			bal, err := e.rt.Balance(ctx, addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read balance", err)
			}
			view := BalanceView{Address: addr.Hex(), Balance: bal.Dec()}
			return rootOpts.formatter(cmd).Emit(view, func(w io.Writer) {
				fmt.Fprintln(w, view.Balance)
			})
		},
	}
}

// AssetView is one held asset.
type AssetView struct {
	Program string `json:"program"`
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Escrow  string `json:"escrow,omitempty"`
}

func newAssetView(a store.Asset) AssetView {
	v := AssetView{Program: a.Program.Hex(), Asset: a.Asset.Hex(), Holder: a.Holder.Hex()}
	if a.Escrow != (common.Address{}) {
		v.Escrow = a.Escrow.Hex()
	}
	return v
}

// NewHoldingsCommand creates the holdings command.
func NewHoldingsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "holdings <address>",
		Short: "List assets held by an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := parseAddressArg("address", args[0])
			if err != nil {
				return err
			}
			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			held, err := e.rt.Holdings(ctx, addr)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read holdings", err)
			}
			views := make([]AssetView, len(held))
			for i, a := range held {
				views[i] = newAssetView(a)
			}
			return rootOpts.formatter(cmd).Emit(views, func(w io.Writer) {
				if len(views) == 0 {
					fmt.Fprintln(w, "no assets")
					return
				}
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "PROGRAM\tASSET\tESCROW")
				for _, v := range views {
					escrow := v.Escrow
					if escrow == "" {
						escrow = "-"
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Program, v.Asset, escrow)
				}
				tw.Flush()
			})
		},
	}
}

// EntryView is the printed form of a log entry.
type EntryView struct {
	Seq       int64  `json:"seq"`
	TxID      string `json:"tx_id"`
	Kind      string `json:"kind"`
	Outcome   string `json:"outcome"`
	Message   string `json:"message,omitempty"`
	StateHash string `json:"state_hash,omitempty"`
	EntryHash string `json:"entry_hash"`
	Payload   string `json:"payload,omitempty"`
}

func newEntryView(e store.Entry, withPayload bool) EntryView {
	v := EntryView{
		Seq:       e.Seq,
		TxID:      e.TxID,
		Kind:      e.Kind,
		Outcome:   e.Outcome,
		Message:   e.Message,
		StateHash: e.StateHash,
		EntryHash: e.EntryHash,
	}
	if withPayload {
		v.Payload = e.Payload
	}
	return v
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	var kind, txID string

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Print the transaction log",
		Long: `Print the transaction log in seq order. Rejected instructions are logged
with their error code as outcome.

Examples:
  mkp log
  mkp log --kind instruction
  mkp log --tx 0192f3b4-... --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()
			f := rootOpts.formatter(cmd)

			if txID != "" {
				entry, err := e.store.ReadEntry(ctx, txID)
				if errors.Is(err, store.ErrNotFound) {
					return f.Fail(ExitFailure, "E_NOT_FOUND", fmt.Sprintf("no transaction %q", txID), nil)
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read log", err)
				}
				view := newEntryView(entry, true)
				return f.Emit(view, func(w io.Writer) {
					writeEntries(w, []EntryView{view})
					fmt.Fprintf(w, "\n%s\n", view.Payload)
				})
			}

			var entries []store.Entry
			if kind != "" {
				entries, err = e.store.ReadLogKind(ctx, kind)
			} else {
				entries, err = e.store.ReadLog(ctx)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read log", err)
			}
			views := make([]EntryView, len(entries))
			for i, entry := range entries {
				views[i] = newEntryView(entry, false)
			}
			return f.Emit(views, func(w io.Writer) { writeEntries(w, views) })
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only entries of this kind (instruction, airdrop, mint)")
	cmd.Flags().StringVar(&txID, "tx", "", "show one entry with its payload")
	return cmd
}

func writeEntries(w io.Writer, views []EntryView) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTX\tKIND\tOUTCOME")
	for _, v := range views {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", v.Seq, v.TxID, v.Kind, v.Outcome)
	}
	tw.Flush()
}
