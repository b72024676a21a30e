// Package host runs the marketplace processor against durable storage.
//
// The host supplies what the processor assumes from its environment:
// signed transactions with ordered account lists, derived state and custody
// addresses, a ledger of balances and asset holdings, per-slot
// serialization and all-or-nothing execution. Each transaction runs in one
// SQLite transaction; accepted and rejected transactions alike are appended
// to the log, which Replay can re-execute to verify determinism.
package host
