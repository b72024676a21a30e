package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/ir"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// Airdrop credits amount to addr. It exists for development ledgers and is
// logged so replay reproduces balances.
func (r *Runtime) Airdrop(ctx context.Context, to common.Address, amount *uint256.Int) (*Receipt, error) {
	if !market.FitsU128(amount) {
		return nil, fmt.Errorf("airdrop: amount %s exceeds 128 bits", amount.Dec())
	}
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.airdrop(ctx, r.ids.Generate(), to, amount, r.clock.Next())
}

func (r *Runtime) airdrop(ctx context.Context, id string, to common.Address, amount *uint256.Int, seq int64) (*Receipt, error) {
	payload := ir.Object{
		"id":     ir.String(id),
		"to":     ir.String(to.Hex()),
		"amount": ir.String(amount.Dec()),
	}

	var receipt *Receipt
	err := r.store.InTx(ctx, func(stx *store.Tx) error {
		if err := NewLedger(stx, r.deploy.Custody, r.rentPerByte).Credit(ctx, to, amount); err != nil {
			return err
		}
		hash, err := txSlotHash(ctx, stx, r.deploy.State)
		if err != nil {
			return err
		}
		receipt, err = r.logEntry(ctx, stx.AppendLog, id, seq, store.KindAirdrop, payload, store.OutcomeOK, "", hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("airdrop %s: %w", to.Hex(), err)
	}

	r.logger.Info("airdrop", "tx_id", id, "to", to.Hex(), "amount", amount.Dec())
	return receipt, nil
}

// MintAsset creates a new asset held by holder. Development ledgers only;
// logged for replay.
func (r *Runtime) MintAsset(ctx context.Context, program, asset, holder common.Address) (*Receipt, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.mint(ctx, r.ids.Generate(), program, asset, holder, r.clock.Next())
}

func (r *Runtime) mint(ctx context.Context, id string, program, asset, holder common.Address, seq int64) (*Receipt, error) {
	payload := ir.Object{
		"id":      ir.String(id),
		"program": ir.String(program.Hex()),
		"asset":   ir.String(asset.Hex()),
		"holder":  ir.String(holder.Hex()),
	}

	var receipt *Receipt
	err := r.store.InTx(ctx, func(stx *store.Tx) error {
		if err := NewLedger(stx, r.deploy.Custody, r.rentPerByte).Mint(ctx, program, asset, holder); err != nil {
			return err
		}
		hash, err := txSlotHash(ctx, stx, r.deploy.State)
		if err != nil {
			return err
		}
		receipt, err = r.logEntry(ctx, stx.AppendLog, id, seq, store.KindMint, payload, store.OutcomeOK, "", hash)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("mint asset: %w", err)
	}

	r.logger.Info("asset minted", "tx_id", id, "asset", asset.Hex(), "holder", holder.Hex())
	return receipt, nil
}

func txSlotHash(ctx context.Context, stx *store.Tx, state common.Address) (string, error) {
	slot, err := stx.Account(ctx, state)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ir.StateHash(slot.Data), nil
}

type airdropJSON struct {
	ID     string `json:"id"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type mintJSON struct {
	ID      string `json:"id"`
	Program string `json:"program"`
	Asset   string `json:"asset"`
	Holder  string `json:"holder"`
}

func decodeStrict(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
