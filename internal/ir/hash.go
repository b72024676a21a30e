package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix allows the
// algorithm to change without colliding with older hashes.
const (
	DomainState    = "mkp/state/v1"
	DomainEntry    = "mkp/entry/v1"
	DomainSnapshot = "mkp/snapshot/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// StateHash hashes the persisted bytes of a registry slot.
// Empty data hashes to the empty string so uninitialized slots compare equal.
func StateHash(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	return hashWithDomain(DomainState, data)
}

// EntryHash computes the identity of a transaction log entry from its
// canonical fields. Two replays of the same log must produce the same
// sequence of entry hashes.
func EntryHash(txID string, seq int64, payload Object, outcome string, stateHash string) (string, error) {
	obj := Object{
		"tx_id":      String(txID),
		"seq":        Int(seq),
		"payload":    payload,
		"outcome":    String(outcome),
		"state_hash": String(stateHash),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EntryHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEntry, canonical), nil
}

// SnapshotHash hashes a canonical snapshot body.
func SnapshotHash(body []byte) string {
	return hashWithDomain(DomainSnapshot, body)
}
