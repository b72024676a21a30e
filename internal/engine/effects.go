package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/ir"
)

// Capabilities is the host surface the processor calls into. Calls are
// synchronous and any error aborts the instruction.
type Capabilities interface {
	// TransferValue moves native value between two accounts.
	TransferValue(ctx context.Context, from, to common.Address, amount *uint256.Int) error

	// TransferAsset moves one unit of (program, asset) from one holder to
	// another under the given authority.
	TransferAsset(ctx context.Context, program, asset, from, to, authority common.Address) error

	// CreateAccount allocates space bytes at account, owned by owner and
	// paid for by payer.
	CreateAccount(ctx context.Context, payer, account common.Address, space uint64, owner common.Address) error
}

// Effect is an external side effect produced by a handler. Effects are
// applied in order after validation succeeds.
type Effect interface {
	// Kind names the effect in traces.
	Kind() string

	// Fields describes the effect for traces and logs.
	Fields() ir.Object

	apply(ctx context.Context, caps Capabilities) error
}

// ValueTransfer moves native value.
type ValueTransfer struct {
	From   common.Address
	To     common.Address
	Amount uint256.Int
}

// AssetTransfer moves a single asset unit.
type AssetTransfer struct {
	Program   common.Address
	Asset     common.Address
	From      common.Address
	To        common.Address
	Authority common.Address
}

// AccountCreation allocates a program-owned account.
type AccountCreation struct {
	Payer   common.Address
	Account common.Address
	Space   uint64
	Owner   common.Address
}

func valueTransfer(from, to common.Address, amount *uint256.Int) *ValueTransfer {
	v := &ValueTransfer{From: from, To: to}
	v.Amount.Set(amount)
	return v
}

func (*ValueTransfer) Kind() string   { return "transfer_value" }
func (*AssetTransfer) Kind() string   { return "transfer_asset" }
func (*AccountCreation) Kind() string { return "create_account" }

func (v *ValueTransfer) Fields() ir.Object {
	return ir.Object{
		"from":   ir.String(v.From.Hex()),
		"to":     ir.String(v.To.Hex()),
		"amount": ir.String(v.Amount.Dec()),
	}
}

func (a *AssetTransfer) Fields() ir.Object {
	return ir.Object{
		"program":   ir.String(a.Program.Hex()),
		"asset":     ir.String(a.Asset.Hex()),
		"from":      ir.String(a.From.Hex()),
		"to":        ir.String(a.To.Hex()),
		"authority": ir.String(a.Authority.Hex()),
	}
}

func (c *AccountCreation) Fields() ir.Object {
	return ir.Object{
		"payer":   ir.String(c.Payer.Hex()),
		"account": ir.String(c.Account.Hex()),
		"space":   ir.Int(int64(c.Space)),
		"owner":   ir.String(c.Owner.Hex()),
	}
}

func (v *ValueTransfer) apply(ctx context.Context, caps Capabilities) error {
	return caps.TransferValue(ctx, v.From, v.To, &v.Amount)
}

func (a *AssetTransfer) apply(ctx context.Context, caps Capabilities) error {
	return caps.TransferAsset(ctx, a.Program, a.Asset, a.From, a.To, a.Authority)
}

func (c *AccountCreation) apply(ctx context.Context, caps Capabilities) error {
	return caps.CreateAccount(ctx, c.Payer, c.Account, c.Space, c.Owner)
}

// DescribeEffects renders effects as a canonical array, in order.
func DescribeEffects(effects []Effect) ir.Array {
	out := make(ir.Array, 0, len(effects))
	for _, e := range effects {
		fields := e.Fields()
		fields["kind"] = ir.String(e.Kind())
		out = append(out, fields)
	}
	return out
}
