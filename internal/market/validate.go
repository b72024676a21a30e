package market

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// ErrInvariant is wrapped by every registry invariant violation.
var ErrInvariant = errors.New("registry invariant violated")

// maxU128 is 2^128 - 1.
var maxU128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// FitsU128 reports whether v is representable as an unsigned 128-bit value.
func FitsU128(v *uint256.Int) bool {
	return !v.Gt(maxU128)
}

// MaxU128 returns a copy of 2^128 - 1.
func MaxU128() *uint256.Int {
	return new(uint256.Int).Set(maxU128)
}

// Validate checks the registry invariants.
func (s *State) Validate() error {
	if uint64(len(s.Items)) != s.ItemCount {
		return fmt.Errorf("%w: item_count %d but %d items stored", ErrInvariant, s.ItemCount, len(s.Items))
	}
	for i := range s.Items {
		it := &s.Items[i]
		if it.ID != uint64(i)+1 {
			return fmt.Errorf("%w: item at position %d has id %d", ErrInvariant, i, it.ID)
		}
		if (it.Sold || it.Gacha) && it.Owner == nil {
			return fmt.Errorf("%w: item %d acquired without owner", ErrInvariant, it.ID)
		}
		if it.CashBackPercent >= MaxCashBackPercent {
			return fmt.Errorf("%w: item %d cash_back_percent %d", ErrInvariant, it.ID, it.CashBackPercent)
		}
		if !FitsU128(&it.Price) {
			return fmt.Errorf("%w: item %d price exceeds 128 bits", ErrInvariant, it.ID)
		}
	}
	if s.SoldCount > s.ItemCount {
		return fmt.Errorf("%w: sold_count %d > item_count %d", ErrInvariant, s.SoldCount, s.ItemCount)
	}
	if !FitsU128(&s.ListingPrice) {
		return fmt.Errorf("%w: listing_price exceeds 128 bits", ErrInvariant)
	}
	return nil
}
