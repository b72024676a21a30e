// Package snapshot exports and restores the full ledger of a market database.
//
// A snapshot file is zstd compressed. Its first line is a JSON header; the
// rest is the canonical JSON body whose hash the header records.
package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/klauspost/compress/zstd"

	"github.com/tungla20/Solana-MKP/internal/ir"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// Version is the snapshot file format version.
const Version = 1

var (
	// ErrHashMismatch is returned when a body does not match its header.
	ErrHashMismatch = errors.New("snapshot: body hash mismatch")

	// ErrNotEmpty is returned when restoring into a database with history.
	ErrNotEmpty = errors.New("snapshot: target database is not empty")
)

// Header is the first line of a snapshot file.
type Header struct {
	Version       int    `json:"version"`
	Program       string `json:"program"`
	Seq           int64  `json:"seq"`
	StateHash     string `json:"state_hash"`
	BodyHash      string `json:"body_hash"`
	EngineVersion string `json:"engine_version"`
}

// Snapshot is the ledger at one log position.
type Snapshot struct {
	Header   Header
	Accounts []store.Account
	Assets   []store.Asset
}

// Capture reads the ledger of st. state is the registry slot address, used
// for the header's state hash.
func Capture(ctx context.Context, st *store.Store, program, state common.Address) (*Snapshot, error) {
	seq, err := position(ctx, st)
	if err != nil {
		return nil, err
	}
	accounts, err := st.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	assets, err := st.Assets(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	snap := &Snapshot{
		Header: Header{
			Version:       Version,
			Program:       program.Hex(),
			Seq:           seq,
			EngineVersion: ir.EngineVersion,
		},
		Accounts: accounts,
		Assets:   assets,
	}
	for _, a := range accounts {
		if a.Address == state {
			snap.Header.StateHash = ir.StateHash(a.Data)
		}
	}

	body, err := snap.body()
	if err != nil {
		return nil, err
	}
	snap.Header.BodyHash = ir.SnapshotHash(body)
	return snap, nil
}

// position is the last logged seq, or the restored base when nothing has
// been logged since a restore.
func position(ctx context.Context, st *store.Store) (int64, error) {
	seq, err := st.LastSeq(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	base, err := st.Meta(ctx, store.MetaBaseSeq)
	if errors.Is(err, store.ErrNotFound) {
		return seq, nil
	}
	if err != nil {
		return 0, fmt.Errorf("snapshot: %w", err)
	}
	b, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("snapshot: base seq %q: %w", base, err)
	}
	return max(seq, b), nil
}

func (s *Snapshot) body() ([]byte, error) {
	accounts := make(ir.Array, len(s.Accounts))
	for i, a := range s.Accounts {
		data := ""
		if len(a.Data) > 0 {
			data = hexutil.Encode(a.Data)
		}
		accounts[i] = ir.Object{
			"address": ir.String(a.Address.Hex()),
			"owner":   ir.String(optional(a.Owner)),
			"balance": ir.String(a.Balance.Dec()),
			"space":   ir.Int(a.Space),
			"data":    ir.String(data),
		}
	}
	assets := make(ir.Array, len(s.Assets))
	for i, a := range s.Assets {
		assets[i] = ir.Object{
			"program": ir.String(a.Program.Hex()),
			"asset":   ir.String(a.Asset.Hex()),
			"holder":  ir.String(a.Holder.Hex()),
			"escrow":  ir.String(optional(a.Escrow)),
		}
	}
	body, err := ir.MarshalCanonical(ir.Object{"accounts": accounts, "assets": assets})
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode body: %w", err)
	}
	return body, nil
}

func optional(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}

// Write encodes snap to w.
func Write(w io.Writer, snap *Snapshot) error {
	body, err := snap.body()
	if err != nil {
		return err
	}
	header, err := json.Marshal(snap.Header)
	if err != nil {
		return fmt.Errorf("snapshot: encode header: %w", err)
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)
	for _, chunk := range [][]byte{header, {'\n'}, body} {
		if _, err := bw.Write(chunk); err != nil {
			enc.Close()
			return fmt.Errorf("snapshot: write: %w", err)
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return fmt.Errorf("snapshot: write: %w", err)
	}
	return enc.Close()
}

type accountJSON struct {
	Address string `json:"address"`
	Owner   string `json:"owner"`
	Balance string `json:"balance"`
	Space   uint64 `json:"space"`
	Data    string `json:"data"`
}

type assetJSON struct {
	Program string `json:"program"`
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
	Escrow  string `json:"escrow"`
}

type bodyJSON struct {
	Accounts []accountJSON `json:"accounts"`
	Assets   []assetJSON   `json:"assets"`
}

// Read decodes a snapshot and checks its body hash.
func Read(r io.Reader) (*Snapshot, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 64*1024)
	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("snapshot: read header: %w", err)
	}
	var h Header
	if err := json.Unmarshal(line, &h); err != nil {
		return nil, fmt.Errorf("snapshot: decode header: %w", err)
	}
	if h.Version != Version {
		return nil, fmt.Errorf("snapshot: unsupported version %d", h.Version)
	}

	body, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read body: %w", err)
	}
	if got := ir.SnapshotHash(body); got != h.BodyHash {
		return nil, fmt.Errorf("%w: header %s, body %s", ErrHashMismatch, h.BodyHash, got)
	}

	var b bodyJSON
	d := json.NewDecoder(bytes.NewReader(body))
	d.DisallowUnknownFields()
	if err := d.Decode(&b); err != nil {
		return nil, fmt.Errorf("snapshot: decode body: %w", err)
	}

	snap := &Snapshot{Header: h}
	for _, a := range b.Accounts {
		acct, err := a.account()
		if err != nil {
			return nil, err
		}
		snap.Accounts = append(snap.Accounts, acct)
	}
	for _, a := range b.Assets {
		asset, err := a.asset()
		if err != nil {
			return nil, err
		}
		snap.Assets = append(snap.Assets, asset)
	}
	return snap, nil
}

func (a accountJSON) account() (store.Account, error) {
	var out store.Account
	addr, err := market.ParseAddress(a.Address)
	if err != nil {
		return out, fmt.Errorf("snapshot: account: %w", err)
	}
	out.Address = addr
	if a.Owner != "" {
		if out.Owner, err = market.ParseAddress(a.Owner); err != nil {
			return out, fmt.Errorf("snapshot: account %s owner: %w", a.Address, err)
		}
	}
	bal, err := market.ParseAmount(a.Balance)
	if err != nil {
		return out, fmt.Errorf("snapshot: account %s balance: %w", a.Address, err)
	}
	out.Balance.Set(bal)
	out.Space = a.Space
	if a.Data != "" {
		if out.Data, err = hexutil.Decode(a.Data); err != nil {
			return out, fmt.Errorf("snapshot: account %s data: %w", a.Address, err)
		}
	}
	return out, nil
}

func (a assetJSON) asset() (store.Asset, error) {
	var out store.Asset
	fields := []struct {
		dst *common.Address
		src string
	}{{&out.Program, a.Program}, {&out.Asset, a.Asset}, {&out.Holder, a.Holder}}
	for _, f := range fields {
		v, err := market.ParseAddress(f.src)
		if err != nil {
			return out, fmt.Errorf("snapshot: asset: %w", err)
		}
		*f.dst = v
	}
	if a.Escrow != "" {
		v, err := market.ParseAddress(a.Escrow)
		if err != nil {
			return out, fmt.Errorf("snapshot: asset escrow: %w", err)
		}
		out.Escrow = v
	}
	return out, nil
}

// Restore loads snap into an empty database and records its program and log
// position so a runtime opened on st continues numbering after it.
func Restore(ctx context.Context, st *store.Store, snap *Snapshot) error {
	last, err := st.LastSeq(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	existing, err := st.Accounts(ctx)
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if last > 0 || len(existing) > 0 {
		return ErrNotEmpty
	}
	if bound, err := st.Meta(ctx, store.MetaProgramID); err == nil && bound != snap.Header.Program {
		return fmt.Errorf("snapshot: database belongs to %s, snapshot to %s", bound, snap.Header.Program)
	}

	return st.InTx(ctx, func(tx *store.Tx) error {
		for i := range snap.Accounts {
			if err := tx.PutAccount(ctx, &snap.Accounts[i]); err != nil {
				return err
			}
		}
		for i := range snap.Assets {
			if err := tx.PutAsset(ctx, &snap.Assets[i]); err != nil {
				return err
			}
		}
		if err := tx.SetMeta(ctx, store.MetaProgramID, snap.Header.Program); err != nil {
			return err
		}
		return tx.SetMeta(ctx, store.MetaBaseSeq, strconv.FormatInt(snap.Header.Seq, 10))
	})
}

// WriteFile writes snap to path, creating parent directories.
func WriteFile(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Write(f, snap); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadFile reads a snapshot from path.
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// ObjectKey names a snapshot in object storage.
func ObjectKey(prefix string, h Header) string {
	return fmt.Sprintf("%s%s/%020d.snap.zst", prefix, h.Program, h.Seq)
}
