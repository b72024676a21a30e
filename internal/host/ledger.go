package host

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/engine"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// Ledger errors, returned to the processor and surfaced as TransferError.
var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrBalanceOverflow   = errors.New("balance exceeds 128 bits")
	ErrUnknownAsset      = errors.New("unknown asset")
	ErrNotHolder         = errors.New("source does not hold asset")
	ErrUnauthorized      = errors.New("authority may not move asset")
	ErrAccountExists     = errors.New("account already exists")
)

// Ledger applies capability calls to a store transaction.
type Ledger struct {
	tx          *store.Tx
	custody     common.Address
	rentPerByte uint64
}

var _ engine.Capabilities = (*Ledger)(nil)

// NewLedger binds a ledger to tx. Assets moved into custody record it as
// their escrow authority.
func NewLedger(tx *store.Tx, custody common.Address, rentPerByte uint64) *Ledger {
	return &Ledger{tx: tx, custody: custody, rentPerByte: rentPerByte}
}

// account loads addr, returning an empty account when it does not exist.
func (l *Ledger) account(ctx context.Context, addr common.Address) (*store.Account, error) {
	a, err := l.tx.Account(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return &store.Account{Address: addr}, nil
	}
	return a, err
}

func (l *Ledger) TransferValue(ctx context.Context, from, to common.Address, amount *uint256.Int) error {
	src, err := l.account(ctx, from)
	if err != nil {
		return err
	}
	if src.Balance.Lt(amount) {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientFunds, from.Hex(), src.Balance.Dec(), amount.Dec())
	}
	if amount.IsZero() || from == to {
		return nil
	}

	dst, err := l.account(ctx, to)
	if err != nil {
		return err
	}
	if err := credit(dst, amount); err != nil {
		return err
	}
	src.Balance.Sub(&src.Balance, amount)

	if err := l.tx.PutAccount(ctx, src); err != nil {
		return err
	}
	return l.tx.PutAccount(ctx, dst)
}

func (l *Ledger) TransferAsset(ctx context.Context, program, asset, from, to, authority common.Address) error {
	a, err := l.tx.Asset(ctx, program, asset)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownAsset, program.Hex(), asset.Hex())
	}
	if err != nil {
		return err
	}
	if a.Holder != from {
		return fmt.Errorf("%w: %s is held by %s, not %s", ErrNotHolder, asset.Hex(), a.Holder.Hex(), from.Hex())
	}
	if authority != a.Holder && (a.Escrow == (common.Address{}) || authority != a.Escrow) {
		return fmt.Errorf("%w: %s on %s", ErrUnauthorized, authority.Hex(), asset.Hex())
	}

	a.Holder = to
	if to == l.custody {
		a.Escrow = l.custody
	}
	return l.tx.PutAsset(ctx, a)
}

func (l *Ledger) CreateAccount(ctx context.Context, payer, account common.Address, space uint64, owner common.Address) error {
	target, err := l.account(ctx, account)
	if err != nil {
		return err
	}
	if target.Owner != (common.Address{}) || len(target.Data) > 0 || target.Space > 0 {
		return fmt.Errorf("%w: %s", ErrAccountExists, account.Hex())
	}

	rent := new(uint256.Int).Mul(uint256.NewInt(space), uint256.NewInt(l.rentPerByte))
	if err := l.TransferValue(ctx, payer, account, rent); err != nil {
		return fmt.Errorf("rent for %s: %w", account.Hex(), err)
	}

	// Reload: the rent transfer may have just created the row.
	target, err = l.account(ctx, account)
	if err != nil {
		return err
	}
	target.Owner = owner
	target.Space = space
	return l.tx.PutAccount(ctx, target)
}

// Credit adds amount to addr's balance.
func (l *Ledger) Credit(ctx context.Context, addr common.Address, amount *uint256.Int) error {
	a, err := l.account(ctx, addr)
	if err != nil {
		return err
	}
	if err := credit(a, amount); err != nil {
		return err
	}
	return l.tx.PutAccount(ctx, a)
}

// Mint creates a new asset held by holder.
func (l *Ledger) Mint(ctx context.Context, program, asset, holder common.Address) error {
	_, err := l.tx.Asset(ctx, program, asset)
	if err == nil {
		return fmt.Errorf("mint %s/%s: asset already exists", program.Hex(), asset.Hex())
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return l.tx.PutAsset(ctx, &store.Asset{Program: program, Asset: asset, Holder: holder})
}

func credit(a *store.Account, amount *uint256.Int) error {
	sum, overflow := new(uint256.Int).AddOverflow(&a.Balance, amount)
	if overflow || !market.FitsU128(sum) {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, a.Address.Hex())
	}
	a.Balance.Set(sum)
	return nil
}
