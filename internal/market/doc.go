// Package market defines the item registry: the singleton record holding
// every listing, the created/sold counters, the administrator and the
// listing fee.
//
// The registry is pure data. Handlers in internal/engine load it from the
// slot bytes with Decode, mutate the owned copy, and write it back with
// Encode only after every effect succeeded.
//
// Invariants checked by State.Validate:
//   - item ids are dense, start at 1, and ItemCount equals the highest id
//   - an item flagged Sold or Gacha has an owner
//   - CashBackPercent < 100 on every item
//   - SoldCount <= ItemCount
//
// Item ids and positions are distinct namespaces. Item(id) is the only way
// to resolve an id; eligible sets built for draws are indexed by position.
package market
