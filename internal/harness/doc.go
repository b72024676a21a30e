// Package harness runs YAML marketplace scenarios against a fresh
// in-memory ledger.
//
// A scenario has a setup section (airdrops, mints, listings) that must
// succeed, a flow whose steps are traced with their outcomes and effects,
// and assertions over balances, asset holders, registry items and the
// trace itself. Runs are deterministic: transaction ids, log sequence
// numbers and the accounts behind scenario names are all derived, so a
// trace can be compared byte for byte against a golden file.
//
// Steps are signed by their acting account unless sign_as or unsigned says
// otherwise. A step may name the rejection it expects:
//
//	flow:
//	  - purchase_sale: {buyer: bob, item: 1}
//	    expect: ItemAlreadySold
package harness
