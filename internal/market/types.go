package market

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

const (
	// MaxCashBackPercent is the exclusive upper bound for cash-back.
	MaxCashBackPercent = 100

	// DefaultMaxItems caps the registry when no limit is configured.
	DefaultMaxItems = 1024

	// InitialSpace is the slot size claimed at bootstrap. The record grows
	// past it as listings are added.
	InitialSpace = 645
)

// Item is one listed asset.
type Item struct {
	ID              uint64
	AssetProgram    common.Address
	AssetID         common.Address
	Seller          common.Address
	Owner           *common.Address // nil until purchased or drawn
	Price           uint256.Int
	FileName        string
	Description     string
	CashBackPercent uint8
	Sold            bool
	Gacha           bool
}

// Owned reports whether the item has been acquired.
func (it *Item) Owned() bool {
	return it.Owner != nil
}

// SetOwner records a new owner. The address is copied.
func (it *Item) SetOwner(addr common.Address) {
	a := addr
	it.Owner = &a
}

// State is the singleton registry record.
type State struct {
	// Items in ascending id order; the item with id i sits at index i-1.
	Items        []Item
	ItemCount    uint64
	SoldCount    uint64
	Owner        common.Address
	ListingPrice uint256.Int
	// Seed is the persisted PRNG state for draws.
	Seed        uint64
	Initialized bool
}

// NewState returns a freshly bootstrapped registry.
func NewState(owner common.Address, listingPrice *uint256.Int, seed uint64) *State {
	s := &State{
		Items:       []Item{},
		Owner:       owner,
		Seed:        seed,
		Initialized: true,
	}
	s.ListingPrice.Set(listingPrice)
	return s
}

// Item resolves an item id. The returned pointer aliases the registry.
func (s *State) Item(id uint64) (*Item, bool) {
	if id == 0 || id > uint64(len(s.Items)) {
		return nil, false
	}
	it := &s.Items[id-1]
	if it.ID != id {
		return nil, false
	}
	return it, true
}

// Append assigns the next id to item, stores it and returns the id.
func (s *State) Append(item Item) uint64 {
	s.ItemCount++
	item.ID = s.ItemCount
	s.Items = append(s.Items, item)
	return item.ID
}

// Eligible returns pointers to every item matching pred, in id order.
// The result is indexed by position, not by id.
func (s *State) Eligible(pred func(*Item) bool) []*Item {
	var out []*Item
	for i := range s.Items {
		if pred(&s.Items[i]) {
			out = append(out, &s.Items[i])
		}
	}
	return out
}

// AddSold increments SoldCount by n without passing ItemCount.
func (s *State) AddSold(n uint64) {
	room := s.ItemCount - s.SoldCount
	if n > room {
		n = room
	}
	s.SoldCount += n
}
