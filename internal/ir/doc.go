// Package ir provides the canonical value representation shared by every
// persisted record in the marketplace.
//
// The registry slot, transaction log payloads and golden traces are all
// serialized through MarshalCanonical so that identical state always yields
// identical bytes, and therefore identical hashes. Replay verification and
// snapshot comparison depend on this.
//
// Key constraints:
//   - NO float types anywhere; amounts wider than int64 travel as decimal strings
//   - NO null values; optional fields are omitted instead
//   - All object keys use snake_case
//
// ir imports nothing internal.
package ir
