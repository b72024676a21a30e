package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tungla20/Solana-MKP/internal/host"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// ReplayResult is the output of the replay command.
type ReplayResult struct {
	Program       string   `json:"program"`
	Entries       int      `json:"entries"`
	Deterministic bool     `json:"deterministic"`
	Mismatches    []string `json:"mismatches"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute the transaction log and verify determinism",
		Long: `Re-execute every logged entry, in seq order, against an empty in-memory
ledger and compare each outcome, state hash and entry hash with the log.
The database itself is not modified.

Exit codes:
  0 - Every entry reproduced exactly
  1 - Replay diverged from the log
  2 - Command error (database not found, restored database, etc.)

Examples:
  mkp replay --db ./mkp.db
  mkp replay --db ./mkp.db --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, cmd)
		},
	}
	return cmd
}

func runReplay(opts *RootOptions, cmd *cobra.Command) error {
	ctx := commandContext(cmd)

	e, err := opts.open(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close()

	// A restored database has no log before its snapshot.
	if base, err := e.store.Meta(ctx, store.MetaBaseSeq); err == nil {
		return NewExitError(ExitCommandError,
			fmt.Sprintf("database was restored from a snapshot at seq %s and cannot be replayed", base))
	} else if !errors.Is(err, store.ErrNotFound) {
		return WrapExitError(ExitCommandError, "failed to read database", err)
	}

	entries, err := e.store.ReadLog(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read log", err)
	}

	target, err := store.Open(":memory:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open replay ledger", err)
	}
	defer target.Close()

	rt, err := host.New(ctx, target, host.Options{
		Program:     e.rt.Deployment().Program,
		MaxItems:    e.cfg.Market.MaxItems,
		RentPerByte: e.cfg.Market.RentPerByte,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start replay runtime", err)
	}

	report, err := host.Replay(ctx, entries, rt)
	if err != nil {
		return WrapExitError(ExitCommandError, "replay failed", err)
	}

	result := ReplayResult{
		Program:       e.rt.Deployment().Program.Hex(),
		Entries:       report.Entries,
		Deterministic: report.OK(),
		Mismatches:    make([]string, len(report.Mismatches)),
	}
	for i, m := range report.Mismatches {
		result.Mismatches[i] = m.String()
	}
	e.logger.Debug("replay finished", "entries", result.Entries, "mismatches", len(result.Mismatches))

	f := opts.formatter(cmd)
	if !result.Deterministic {
		if opts.Format == "json" {
			return f.Fail(ExitFailure, "E_DETERMINISM", "replay diverged from the log", result)
		}
		writeReplayText(f.Writer, result, opts.Verbose)
		return NewExitError(ExitFailure, "replay diverged from the log")
	}
	return f.Emit(result, func(w io.Writer) { writeReplayText(w, result, opts.Verbose) })
}

func writeReplayText(w io.Writer, result ReplayResult, verbose bool) {
	fmt.Fprintf(w, "Replay Summary: %d entries for %s\n", result.Entries, result.Program)
	fmt.Fprintln(w)

	if result.Deterministic {
		fmt.Fprintln(w, "✓ Every entry reproduced exactly")
		return
	}

	shown := result.Mismatches
	if !verbose && len(shown) > 10 {
		shown = shown[:10]
	}
	for _, m := range shown {
		fmt.Fprintf(w, "  ✗ %s\n", m)
	}
	if len(shown) < len(result.Mismatches) {
		fmt.Fprintf(w, "  ... %d more (use --verbose)\n", len(result.Mismatches)-len(shown))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "✗ Replay diverged from the log")
}
