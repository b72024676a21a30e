package market

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/ir"
)

// ErrUninitialized is returned by Decode for a slot that holds no registry.
var ErrUninitialized = errors.New("slot holds no registry")

// Record is the JSON shape of a persisted registry. It is also the shape
// shown by inspection commands.
type Record struct {
	Version      string       `json:"version"`
	Owner        string       `json:"owner"`
	ListingPrice string       `json:"listing_price"`
	ItemCount    uint64       `json:"item_count"`
	SoldCount    uint64       `json:"sold_count"`
	Seed         string       `json:"seed"`
	Initialized  bool         `json:"initialized"`
	Items        []ItemRecord `json:"items"`
}

// ItemRecord is the JSON shape of one item. Owner is omitted when unset.
type ItemRecord struct {
	ID              uint64 `json:"id"`
	AssetProgram    string `json:"asset_program"`
	AssetID         string `json:"asset_id"`
	Seller          string `json:"seller"`
	Owner           string `json:"owner,omitempty"`
	Price           string `json:"price"`
	FileName        string `json:"file_name"`
	Description     string `json:"description"`
	CashBackPercent uint8  `json:"cash_back_percent"`
	Sold            bool   `json:"sold"`
	Gacha           bool   `json:"gacha"`
}

// ToRecord converts the registry to its persisted shape.
func (s *State) ToRecord() Record {
	r := Record{
		Version:      ir.FormatVersion,
		Owner:        s.Owner.Hex(),
		ListingPrice: s.ListingPrice.Dec(),
		ItemCount:    s.ItemCount,
		SoldCount:    s.SoldCount,
		Seed:         strconv.FormatUint(s.Seed, 10),
		Initialized:  s.Initialized,
		Items:        make([]ItemRecord, len(s.Items)),
	}
	for i := range s.Items {
		it := &s.Items[i]
		rec := ItemRecord{
			ID:              it.ID,
			AssetProgram:    it.AssetProgram.Hex(),
			AssetID:         it.AssetID.Hex(),
			Seller:          it.Seller.Hex(),
			Price:           it.Price.Dec(),
			FileName:        it.FileName,
			Description:     it.Description,
			CashBackPercent: it.CashBackPercent,
			Sold:            it.Sold,
			Gacha:           it.Gacha,
		}
		if it.Owner != nil {
			rec.Owner = it.Owner.Hex()
		}
		r.Items[i] = rec
	}
	return r
}

// counter lifts a uint64 into ir.Int, which holds at most MaxInt64.
func counter(name string, v uint64) (ir.Int, error) {
	if v > math.MaxInt64 {
		return 0, fmt.Errorf("%s %d out of range", name, v)
	}
	return ir.Int(v), nil
}

func (r Record) canonical() (ir.Object, error) {
	itemCount, err := counter("item_count", r.ItemCount)
	if err != nil {
		return nil, err
	}
	soldCount, err := counter("sold_count", r.SoldCount)
	if err != nil {
		return nil, err
	}

	items := make(ir.Array, len(r.Items))
	for i, it := range r.Items {
		id, err := counter("item id", it.ID)
		if err != nil {
			return nil, err
		}
		obj := ir.Object{
			"id":                id,
			"asset_program":     ir.String(it.AssetProgram),
			"asset_id":          ir.String(it.AssetID),
			"seller":            ir.String(it.Seller),
			"price":             ir.String(it.Price),
			"file_name":         ir.Opaque(it.FileName),
			"description":       ir.Opaque(it.Description),
			"cash_back_percent": ir.Int(it.CashBackPercent),
			"sold":              ir.Bool(it.Sold),
			"gacha":             ir.Bool(it.Gacha),
		}
		if it.Owner != "" {
			obj["owner"] = ir.String(it.Owner)
		}
		items[i] = obj
	}
	return ir.Object{
		"version":       ir.String(r.Version),
		"owner":         ir.String(r.Owner),
		"listing_price": ir.String(r.ListingPrice),
		"item_count":    itemCount,
		"sold_count":    soldCount,
		"seed":          ir.String(r.Seed),
		"initialized":   ir.Bool(r.Initialized),
		"items":         items,
	}, nil
}

// Encode serializes the registry as canonical JSON.
func Encode(s *State) ([]byte, error) {
	obj, err := s.ToRecord().canonical()
	if err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return nil, fmt.Errorf("encode registry: %w", err)
	}
	return data, nil
}

// Decode parses slot bytes into an owned registry value.
// Empty data yields ErrUninitialized.
func Decode(data []byte) (*State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrUninitialized
	}

	var r Record
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	if r.Version != ir.FormatVersion {
		return nil, fmt.Errorf("decode registry: unsupported version %q", r.Version)
	}
	return r.toState()
}

func (r Record) toState() (*State, error) {
	s := &State{
		Items:       make([]Item, len(r.Items)),
		Initialized: r.Initialized,
	}
	var err error
	if s.Owner, err = ParseAddress(r.Owner); err != nil {
		return nil, fmt.Errorf("decode registry: owner: %w", err)
	}
	if err := setAmount(&s.ListingPrice, r.ListingPrice); err != nil {
		return nil, fmt.Errorf("decode registry: listing_price: %w", err)
	}
	s.ItemCount = r.ItemCount
	s.SoldCount = r.SoldCount
	if s.Seed, err = strconv.ParseUint(r.Seed, 10, 64); err != nil {
		return nil, fmt.Errorf("decode registry: seed: %w", err)
	}

	for i, rec := range r.Items {
		it := Item{
			ID:              rec.ID,
			FileName:        rec.FileName,
			Description:     rec.Description,
			CashBackPercent: rec.CashBackPercent,
			Sold:            rec.Sold,
			Gacha:           rec.Gacha,
		}
		if rec.ID == 0 {
			return nil, fmt.Errorf("decode registry: item[%d]: invalid id %d", i, rec.ID)
		}
		if it.AssetProgram, err = ParseAddress(rec.AssetProgram); err != nil {
			return nil, fmt.Errorf("decode registry: item %d asset_program: %w", rec.ID, err)
		}
		if it.AssetID, err = ParseAddress(rec.AssetID); err != nil {
			return nil, fmt.Errorf("decode registry: item %d asset_id: %w", rec.ID, err)
		}
		if it.Seller, err = ParseAddress(rec.Seller); err != nil {
			return nil, fmt.Errorf("decode registry: item %d seller: %w", rec.ID, err)
		}
		if rec.Owner != "" {
			owner, err := ParseAddress(rec.Owner)
			if err != nil {
				return nil, fmt.Errorf("decode registry: item %d owner: %w", rec.ID, err)
			}
			it.SetOwner(owner)
		}
		if err := setAmount(&it.Price, rec.Price); err != nil {
			return nil, fmt.Errorf("decode registry: item %d price: %w", rec.ID, err)
		}
		s.Items[i] = it
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return s, nil
}

// ParseAddress parses a hex account identifier.
func ParseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}

// ParseAmount parses a decimal amount bounded to 128 bits.
func ParseAmount(s string) (*uint256.Int, error) {
	v := new(uint256.Int)
	if err := setAmount(v, s); err != nil {
		return nil, err
	}
	return v, nil
}

func setAmount(dst *uint256.Int, s string) error {
	if err := dst.SetFromDecimal(s); err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !FitsU128(dst) {
		return fmt.Errorf("amount %q exceeds 128 bits", s)
	}
	return nil
}
