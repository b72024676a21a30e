package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	s3blob "github.com/tungla20/Solana-MKP/internal/blob/s3"
	"github.com/tungla20/Solana-MKP/internal/config"
	"github.com/tungla20/Solana-MKP/internal/snapshot"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// snapshotPartSize is the multipart chunk used when pushing snapshots.
const snapshotPartSize = 8 << 20

// NewSnapshotCommand creates the snapshot command group.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export, push and restore ledger snapshots",
		Long: `A snapshot holds every account and asset of the ledger at one log
position. Restoring one into an empty database continues the log after it;
entries before the snapshot are not carried over, so replay does not apply
to restored databases.`,
	}
	cmd.AddCommand(newSnapshotExportCommand(rootOpts))
	cmd.AddCommand(newSnapshotPushCommand(rootOpts))
	cmd.AddCommand(newSnapshotListCommand(rootOpts))
	cmd.AddCommand(newSnapshotRestoreCommand(rootOpts))
	return cmd
}

// SnapshotView is printed after a snapshot is written.
type SnapshotView struct {
	snapshot.Header
	Location string `json:"location"`
	Accounts int    `json:"accounts"`
	Assets   int    `json:"assets"`
}

func newSnapshotView(snap *snapshot.Snapshot, location string) SnapshotView {
	return SnapshotView{
		Header:   snap.Header,
		Location: location,
		Accounts: len(snap.Accounts),
		Assets:   len(snap.Assets),
	}
}

func (v SnapshotView) writeText(w io.Writer) {
	fmt.Fprintf(w, "✓ snapshot at seq %d -> %s\n", v.Seq, v.Location)
	fmt.Fprintf(w, "  %d accounts, %d assets, state %s\n", v.Accounts, v.Assets, v.StateHash)
}

func capture(ctx context.Context, e *env) (*snapshot.Snapshot, error) {
	d := e.rt.Deployment()
	snap, err := snapshot.Capture(ctx, e.store, d.Program, d.State)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to capture snapshot", err)
	}
	return snap, nil
}

func newBlobClient(ctx context.Context, cfg *config.Config) (*s3blob.Client, error) {
	c, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure object storage", err)
	}
	return c, nil
}

func newSnapshotExportCommand(rootOpts *RootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a snapshot file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			snap, err := capture(ctx, e)
			if err != nil {
				return err
			}
			if err := snapshot.WriteFile(out, snap); err != nil {
				return WrapExitError(ExitCommandError, "failed to write snapshot", err)
			}
			e.logger.Info("snapshot written", "path", out, "seq", snap.Header.Seq)

			view := newSnapshotView(snap, out)
			return rootOpts.formatter(cmd).Emit(view, view.writeText)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (required)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func newSnapshotPushCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "push",
		Short: "Upload a snapshot to object storage",
		Long: `Capture a snapshot and upload it to the configured S3 bucket under
<prefix><program>/<seq>.snap.zst.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			e, err := rootOpts.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer e.close()

			client, err := newBlobClient(ctx, e.cfg)
			if err != nil {
				return err
			}
			snap, err := capture(ctx, e)
			if err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := snapshot.Write(&buf, snap); err != nil {
				return WrapExitError(ExitCommandError, "failed to encode snapshot", err)
			}
			key := snapshot.ObjectKey(e.cfg.S3.Prefix, snap.Header)
			if err := s3blob.NewWriter(client).Put(ctx, key, &buf, snapshotPartSize); err != nil {
				return WrapExitError(ExitCommandError, "failed to upload snapshot", err)
			}
			e.logger.Info("snapshot pushed", "bucket", client.Bucket(), "key", key)

			view := newSnapshotView(snap, fmt.Sprintf("s3://%s/%s", client.Bucket(), key))
			return rootOpts.formatter(cmd).Emit(view, view.writeText)
		},
	}
}

// ObjectView is one stored snapshot.
type ObjectView struct {
	Key          string `json:"key"`
	Size         int64  `json:"size"`
	LastModified string `json:"last_modified,omitempty"`
}

func newSnapshotListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List snapshots in object storage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			client, err := newBlobClient(ctx, cfg)
			if err != nil {
				return err
			}
			objects, err := s3blob.NewReader(client).List(ctx, cfg.S3.Prefix)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list snapshots", err)
			}

			views := make([]ObjectView, len(objects))
			for i, o := range objects {
				views[i] = ObjectView{Key: o.Key, Size: o.Size}
				if !o.LastModified.IsZero() {
					views[i].LastModified = o.LastModified.UTC().Format("2006-01-02T15:04:05Z")
				}
			}
			return rootOpts.formatter(cmd).Emit(views, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "KEY\tSIZE\tMODIFIED")
				for _, v := range views {
					fmt.Fprintf(tw, "%s\t%d\t%s\n", v.Key, v.Size, v.LastModified)
				}
				tw.Flush()
			})
		},
	}
}

func newSnapshotRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	var fromS3 string

	cmd := &cobra.Command{
		Use:   "restore [file]",
		Short: "Load a snapshot into an empty database",
		Long: `Load a snapshot file, or an object with --from-s3, into the configured
database. The database must have no accounts and no log entries.

Examples:
  mkp snapshot restore ledger.snap.zst --db fresh.db
  mkp snapshot restore --from-s3 snapshots/0xabc.../00000000000000000042.snap.zst`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if (len(args) == 1) == (fromS3 != "") {
				return NewExitError(ExitCommandError, "give either a snapshot file or --from-s3")
			}
			ctx := commandContext(cmd)
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}

			var (
				snap     *snapshot.Snapshot
				location string
			)
			if fromS3 != "" {
				client, err := newBlobClient(ctx, cfg)
				if err != nil {
					return err
				}
				body, err := s3blob.NewReader(client).Get(ctx, fromS3)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to download snapshot", err)
				}
				defer body.Close()
				snap, err = snapshot.Read(body)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read snapshot", err)
				}
				location = fmt.Sprintf("s3://%s/%s", client.Bucket(), fromS3)
			} else {
				snap, err = snapshot.ReadFile(args[0])
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read snapshot", err)
				}
				location = args[0]
			}

			// Restore binds the database to the snapshot's program itself, so
			// no runtime is opened here.
			st, err := store.Open(cfg.Database)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open database", err)
			}
			defer st.Close()

			f := rootOpts.formatter(cmd)
			if err := snapshot.Restore(ctx, st, snap); err != nil {
				return f.Fail(ExitFailure, "E_RESTORE", err.Error(), nil)
			}
			view := newSnapshotView(snap, location)
			return f.Emit(view, func(w io.Writer) {
				fmt.Fprintf(w, "✓ restored seq %d from %s into %s\n", view.Seq, location, cfg.Database)
			})
		},
	}
	cmd.Flags().StringVar(&fromS3, "from-s3", "", "object key to download instead of a file")
	return cmd
}
