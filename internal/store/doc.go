// Package store provides SQLite-backed durable storage for the marketplace
// host.
//
// Tables:
//   - accounts: balances, program ownership and account data (the registry
//     lives in the data column of the state slot)
//   - assets: holder and escrow authority per (program, asset)
//   - tx_log: append-only log of every submitted transaction
//   - meta: deployment bindings such as the program id
//
// Every instruction runs inside one Tx, so a rejected instruction rolls
// back all balance and holding changes it made. Rejected transactions are
// then logged outside that transaction.
//
// Ordering uses the seq column (a logical clock), never timestamps, so a
// log replays identically regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - single open connection: one writer, and :memory: stays alive
package store
