package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInjected is returned by FakeLedger when FailAt triggers.
var ErrInjected = errors.New("injected ledger failure")

// AssetKey identifies one asset unit.
type AssetKey struct {
	Program common.Address
	Asset   common.Address
}

// FakeLedger is an in-memory implementation of the engine's capabilities.
//
// Transfers follow the same rules as the SQLite ledger: value moves need
// sufficient balance, and an asset moves only when authority is its holder
// or the custody address it was escrowed into.
type FakeLedger struct {
	mu sync.Mutex

	// Custody is the escrow authority recorded for assets moved into it.
	Custody common.Address

	// RentPerByte is charged to the payer on CreateAccount.
	RentPerByte uint64

	// FailAt makes the n-th capability call (1-based) fail. Zero disables.
	FailAt int

	balances map[common.Address]*uint256.Int
	holders  map[AssetKey]common.Address
	escrow   map[AssetKey]common.Address
	accounts map[common.Address]common.Address

	// Calls records every capability call in order, failed ones included.
	Calls []string
}

// NewFakeLedger creates an empty ledger whose escrow authority is custody.
func NewFakeLedger(custody common.Address) *FakeLedger {
	return &FakeLedger{
		Custody:  custody,
		balances: make(map[common.Address]*uint256.Int),
		holders:  make(map[AssetKey]common.Address),
		escrow:   make(map[AssetKey]common.Address),
		accounts: make(map[common.Address]common.Address),
	}
}

// Fund credits addr with amount.
func (l *FakeLedger) Fund(addr common.Address, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance(addr).AddUint64(l.balance(addr), amount)
}

// Mint gives a fresh asset to holder.
func (l *FakeLedger) Mint(program, asset, holder common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.holders[AssetKey{program, asset}] = holder
}

// Balance returns addr's balance as a uint64. Panics on overflow, which
// never happens with test amounts.
func (l *FakeLedger) Balance(addr common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	b := l.balance(addr)
	if !b.IsUint64() {
		panic("balance exceeds uint64")
	}
	return b.Uint64()
}

// Holder returns the current holder of an asset.
func (l *FakeLedger) Holder(program, asset common.Address) (common.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	h, ok := l.holders[AssetKey{program, asset}]
	return h, ok
}

// AccountOwner returns the owner recorded by CreateAccount.
func (l *FakeLedger) AccountOwner(addr common.Address) (common.Address, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	o, ok := l.accounts[addr]
	return o, ok
}

func (l *FakeLedger) balance(addr common.Address) *uint256.Int {
	b, ok := l.balances[addr]
	if !ok {
		b = new(uint256.Int)
		l.balances[addr] = b
	}
	return b
}

func (l *FakeLedger) record(call string) error {
	l.Calls = append(l.Calls, call)
	if l.FailAt > 0 && len(l.Calls) == l.FailAt {
		return fmt.Errorf("%s: %w", call, ErrInjected)
	}
	return nil
}

func (l *FakeLedger) TransferValue(_ context.Context, from, to common.Address, amount *uint256.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("transfer_value"); err != nil {
		return err
	}

	src := l.balance(from)
	if src.Lt(amount) {
		return fmt.Errorf("insufficient funds: %s has %s, needs %s", from.Hex(), src.Dec(), amount.Dec())
	}
	src.Sub(src, amount)
	dst := l.balance(to)
	dst.Add(dst, amount)
	return nil
}

func (l *FakeLedger) TransferAsset(_ context.Context, program, asset, from, to, authority common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("transfer_asset"); err != nil {
		return err
	}

	key := AssetKey{program, asset}
	holder, ok := l.holders[key]
	if !ok {
		return fmt.Errorf("asset %s/%s does not exist", program.Hex(), asset.Hex())
	}
	if holder != from {
		return fmt.Errorf("asset held by %s, not %s", holder.Hex(), from.Hex())
	}
	if authority != holder && l.escrow[key] != authority {
		return fmt.Errorf("authority %s may not move asset", authority.Hex())
	}

	l.holders[key] = to
	if to == l.Custody {
		l.escrow[key] = l.Custody
	}
	return nil
}

func (l *FakeLedger) CreateAccount(_ context.Context, payer, account common.Address, space uint64, owner common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record("create_account"); err != nil {
		return err
	}

	if _, exists := l.accounts[account]; exists {
		return fmt.Errorf("account %s already exists", account.Hex())
	}
	rent := new(uint256.Int).Mul(uint256.NewInt(space), uint256.NewInt(l.RentPerByte))
	src := l.balance(payer)
	if src.Lt(rent) {
		return fmt.Errorf("insufficient funds for rent: %s", rent.Dec())
	}
	src.Sub(src, rent)
	l.accounts[account] = owner
	return nil
}
