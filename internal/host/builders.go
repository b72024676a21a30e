package host

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/instruction"
	"github.com/tungla20/Solana-MKP/internal/market"
)

// Call is an instruction together with the account list it expects.
type Call struct {
	Instruction instruction.Instruction
	Accounts    []AccountMeta
}

// Transaction wraps the call in an unsigned transaction.
func (c Call) Transaction(id string, program common.Address) (*Transaction, error) {
	return NewTransaction(id, program, c.Instruction, c.Accounts)
}

func signerMeta(a common.Address) AccountMeta {
	return AccountMeta{Key: a, IsSigner: true, IsWritable: true}
}

func readonlyMeta(a common.Address) AccountMeta {
	return AccountMeta{Key: a}
}

func writableMeta(a common.Address) AccountMeta {
	return AccountMeta{Key: a, IsWritable: true}
}

// InitState builds the bootstrap call.
func (d Deployment) InitState(authority common.Address, listingPrice *uint256.Int) Call {
	ins := &instruction.InitState{}
	ins.ListingPrice.Set(listingPrice)
	return Call{
		Instruction: ins,
		Accounts: []AccountMeta{
			signerMeta(authority),
			writableMeta(d.State),
			readonlyMeta(SystemProgram),
		},
	}
}

// Listing describes a CreateMarketItem call.
type Listing struct {
	AssetProgram    common.Address
	AssetID         common.Address
	Price           *uint256.Int
	FileName        string
	Description     string
	CashBackPercent uint8
}

// CreateMarketItem builds a listing call for seller.
func (d Deployment) CreateMarketItem(seller common.Address, l Listing) Call {
	ins := &instruction.CreateMarketItem{
		AssetProgram:    l.AssetProgram,
		AssetID:         l.AssetID,
		FileName:        l.FileName,
		Description:     l.Description,
		CashBackPercent: l.CashBackPercent,
	}
	if l.Price != nil {
		ins.Price.Set(l.Price)
	}
	return Call{
		Instruction: ins,
		Accounts: []AccountMeta{
			signerMeta(seller),
			writableMeta(d.State),
			writableMeta(d.Custody),
		},
	}
}

// PurchaseSale builds a purchase of item id at its listed price. The seller
// and market owner are resolved from st.
func (d Deployment) PurchaseSale(st *market.State, buyer common.Address, id uint64) (Call, error) {
	item, ok := st.Item(id)
	if !ok {
		return Call{}, fmt.Errorf("purchase: no item %d", id)
	}
	return d.PurchaseSaleAt(st, buyer, id, &item.Price)
}

// PurchaseSaleAt is PurchaseSale with an explicit asserted price.
func (d Deployment) PurchaseSaleAt(st *market.State, buyer common.Address, id uint64, price *uint256.Int) (Call, error) {
	item, ok := st.Item(id)
	if !ok {
		return Call{}, fmt.Errorf("purchase: no item %d", id)
	}
	ins := &instruction.PurchaseSale{AssetProgram: item.AssetProgram}
	ins.Price.Set(price)
	ins.ItemID.SetUint64(id)
	return Call{
		Instruction: ins,
		Accounts: []AccountMeta{
			signerMeta(buyer),
			writableMeta(d.State),
			writableMeta(item.Seller),
			writableMeta(st.Owner),
			writableMeta(d.Custody),
		},
	}, nil
}

// Gacha builds a draw for caller. The fee recipient is the seller of the
// first eligible item; with nothing eligible the market owner is used and
// the draw is rejected by the processor.
func (d Deployment) Gacha(st *market.State, caller, assetProgram common.Address, qty uint8, price, fee *uint256.Int) Call {
	recipient := st.Owner
	eligible := st.Eligible(func(it *market.Item) bool {
		return it.Owned() && it.Price.Eq(price)
	})
	if len(eligible) > 0 {
		recipient = eligible[0].Seller
	}

	ins := &instruction.Gacha{AssetProgram: assetProgram, Qty: qty}
	ins.Price.Set(price)
	ins.Fee.Set(fee)
	return Call{
		Instruction: ins,
		Accounts: []AccountMeta{
			signerMeta(caller),
			writableMeta(d.State),
			writableMeta(recipient),
			writableMeta(d.Custody),
		},
	}
}

// CreateGacha builds a pool draw into the market owner's holdings.
func (d Deployment) CreateGacha(st *market.State, caller, assetProgram common.Address, qty uint8) Call {
	return Call{
		Instruction: &instruction.CreateGacha{AssetProgram: assetProgram, Qty: qty},
		Accounts: []AccountMeta{
			signerMeta(caller),
			writableMeta(d.State),
			writableMeta(st.Owner),
			writableMeta(d.Custody),
		},
	}
}
