package testutil

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key derives a deterministic secp256k1 key from a name. Test use only.
func Key(name string) *ecdsa.PrivateKey {
	key, err := crypto.ToECDSA(crypto.Keccak256([]byte("mkp/testkey/" + name)))
	if err != nil {
		panic(err)
	}
	return key
}

// Addr returns the address of Key(name).
func Addr(name string) common.Address {
	return crypto.PubkeyToAddress(Key(name).PublicKey)
}
