// Package instruction defines the closed set of marketplace instructions and
// their binary wire format.
//
// Wire format: one tag byte followed by the variant's fields in declaration
// order. Addresses are 20 raw bytes, u128 values are 16 bytes little-endian,
// u8 is one byte, and strings are a u32 little-endian length followed by
// UTF-8 bytes. Unknown tags, short payloads and trailing bytes are decode
// errors.
package instruction

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/ir"
)

// Tag discriminates instruction variants on the wire.
type Tag uint8

const (
	TagCreateMarketItem Tag = 0
	TagPurchaseSale     Tag = 1
	TagCreateGacha      Tag = 2
	TagGacha            Tag = 3
	TagInitState        Tag = 4
)

var tagNames = map[Tag]string{
	TagCreateMarketItem: "create_market_item",
	TagPurchaseSale:     "purchase_sale",
	TagCreateGacha:      "create_gacha",
	TagGacha:            "gacha",
	TagInitState:        "init_state",
}

// String returns the snake_case instruction name.
func (t Tag) String() string {
	if name, ok := tagNames[t]; ok {
		return name
	}
	return "unknown"
}

// Instruction is a sealed sum type; only the variants in this package
// implement it.
type Instruction interface {
	Tag() Tag
	// Fields returns the arguments as a canonical object for logs and traces.
	Fields() ir.Object
	sealed()
}

// CreateMarketItem lists an asset for sale.
type CreateMarketItem struct {
	AssetProgram    common.Address
	AssetID         common.Address
	Price           uint256.Int
	FileName        string
	Description     string
	CashBackPercent uint8
}

// PurchaseSale buys a listed item at its asserted price.
type PurchaseSale struct {
	AssetProgram common.Address
	Price        uint256.Int
	ItemID       uint256.Int
}

// CreateGacha draws owned items into the administrator's pool.
type CreateGacha struct {
	AssetProgram common.Address
	Qty          uint8
}

// Gacha draws owned items at a given price for the caller against a fee.
type Gacha struct {
	AssetProgram common.Address
	Qty          uint8
	Price        uint256.Int
	Fee          uint256.Int
}

// InitState bootstraps the registry slot.
type InitState struct {
	ListingPrice uint256.Int
}

func (*CreateMarketItem) Tag() Tag { return TagCreateMarketItem }
func (*PurchaseSale) Tag() Tag     { return TagPurchaseSale }
func (*CreateGacha) Tag() Tag      { return TagCreateGacha }
func (*Gacha) Tag() Tag            { return TagGacha }
func (*InitState) Tag() Tag        { return TagInitState }

func (*CreateMarketItem) sealed() {}
func (*PurchaseSale) sealed()     {}
func (*CreateGacha) sealed()      {}
func (*Gacha) sealed()            {}
func (*InitState) sealed()        {}

func (i *CreateMarketItem) Fields() ir.Object {
	return ir.Object{
		"asset_program":     ir.String(i.AssetProgram.Hex()),
		"asset_id":          ir.String(i.AssetID.Hex()),
		"price":             ir.String(i.Price.Dec()),
		"file_name":         ir.Opaque(i.FileName),
		"description":       ir.Opaque(i.Description),
		"cash_back_percent": ir.Int(i.CashBackPercent),
	}
}

func (i *PurchaseSale) Fields() ir.Object {
	return ir.Object{
		"asset_program": ir.String(i.AssetProgram.Hex()),
		"price":         ir.String(i.Price.Dec()),
		"item_id":       ir.String(i.ItemID.Dec()),
	}
}

func (i *CreateGacha) Fields() ir.Object {
	return ir.Object{
		"asset_program": ir.String(i.AssetProgram.Hex()),
		"qty":           ir.Int(i.Qty),
	}
}

func (i *Gacha) Fields() ir.Object {
	return ir.Object{
		"asset_program": ir.String(i.AssetProgram.Hex()),
		"qty":           ir.Int(i.Qty),
		"price":         ir.String(i.Price.Dec()),
		"fee":           ir.String(i.Fee.Dec()),
	}
}

func (i *InitState) Fields() ir.Object {
	return ir.Object{
		"listing_price": ir.String(i.ListingPrice.Dec()),
	}
}
