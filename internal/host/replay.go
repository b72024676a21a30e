package host

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// Mismatch is one difference between a logged entry and its re-execution.
type Mismatch struct {
	Seq   int64
	TxID  string
	Field string
	Want  string
	Got   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("seq %d (%s): %s: logged %q, replayed %q", m.Seq, m.TxID, m.Field, m.Want, m.Got)
}

// ReplayReport summarizes a replay run.
type ReplayReport struct {
	Entries    int
	Mismatches []Mismatch
}

// OK reports whether every entry reproduced exactly.
func (r *ReplayReport) OK() bool {
	return len(r.Mismatches) == 0
}

// Replay re-executes logged entries in seq order against rt, which should
// start from an empty store, and compares outcome, state hash and entry hash
// for each one.
//
// Rejections are expected outcomes, not failures. An error is returned only
// when an entry cannot be decoded or the target store fails.
func Replay(ctx context.Context, entries []store.Entry, rt *Runtime) (*ReplayReport, error) {
	report := &ReplayReport{}
	for _, e := range entries {
		got, err := rt.replayEntry(ctx, e)
		if err != nil {
			return report, fmt.Errorf("replay seq %d (%s): %w", e.Seq, e.TxID, err)
		}
		report.Entries++

		check := func(field, want, have string) {
			if want != have {
				report.Mismatches = append(report.Mismatches, Mismatch{
					Seq: e.Seq, TxID: e.TxID, Field: field, Want: want, Got: have,
				})
			}
		}
		check("outcome", e.Outcome, got.Outcome)
		check("state_hash", e.StateHash, got.StateHash)
		check("entry_hash", e.EntryHash, got.EntryHash)
	}
	return report, nil
}

func (r *Runtime) replayEntry(ctx context.Context, e store.Entry) (*Receipt, error) {
	switch e.Kind {
	case store.KindInstruction:
		tx, err := ParseTransaction([]byte(e.Payload))
		if err != nil {
			return nil, err
		}
		receipt, err := r.execute(ctx, tx, e.Seq)
		if receipt != nil {
			return receipt, nil
		}
		return nil, err

	case store.KindAirdrop:
		var p airdropJSON
		if err := decodeStrict([]byte(e.Payload), &p); err != nil {
			return nil, fmt.Errorf("airdrop payload: %w", err)
		}
		to, err := market.ParseAddress(p.To)
		if err != nil {
			return nil, err
		}
		amount, err := market.ParseAmount(p.Amount)
		if err != nil {
			return nil, err
		}
		return r.airdrop(ctx, p.ID, to, amount, e.Seq)

	case store.KindMint:
		var p mintJSON
		if err := decodeStrict([]byte(e.Payload), &p); err != nil {
			return nil, fmt.Errorf("mint payload: %w", err)
		}
		var addrs [3]common.Address
		for i, s := range []string{p.Program, p.Asset, p.Holder} {
			a, err := market.ParseAddress(s)
			if err != nil {
				return nil, err
			}
			addrs[i] = a
		}
		return r.mint(ctx, p.ID, addrs[0], addrs[1], addrs[2], e.Seq)

	default:
		return nil, fmt.Errorf("unknown entry kind %q", e.Kind)
	}
}
