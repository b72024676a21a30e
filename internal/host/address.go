package host

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const addressDomain = "mkp/pda/v1"

// Seeds for the program's derived accounts.
const (
	StateSeed   = "state"
	CustodySeed = "custody"
)

// SystemProgram is the account passed to InitState as the allocator.
var SystemProgram = common.Address{}

// DeriveAddress returns the program-derived address for seed: the last 20
// bytes of keccak256(domain || program || seed). No private key exists for
// it, so only the program's processing rules can act for it.
func DeriveAddress(program common.Address, seed string) common.Address {
	h := crypto.Keccak256([]byte(addressDomain), program.Bytes(), []byte(seed))
	return common.BytesToAddress(h[12:])
}

// Deployment is the fixed set of addresses belonging to one program.
type Deployment struct {
	Program common.Address
	State   common.Address
	Custody common.Address
}

// NewDeployment derives the state and custody addresses for program.
func NewDeployment(program common.Address) Deployment {
	return Deployment{
		Program: program,
		State:   DeriveAddress(program, StateSeed),
		Custody: DeriveAddress(program, CustodySeed),
	}
}
