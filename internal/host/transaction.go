package host

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/tungla20/Solana-MKP/internal/instruction"
	"github.com/tungla20/Solana-MKP/internal/ir"
)

const txDomain = "mkp/tx/v1"

// AccountMeta is one entry in a transaction's ordered account list.
type AccountMeta struct {
	Key        common.Address
	IsSigner   bool
	IsWritable bool
}

// Transaction carries one instruction and the signatures authorizing it.
type Transaction struct {
	ID         string
	Program    common.Address
	Data       []byte
	Accounts   []AccountMeta
	Signatures [][]byte
}

// NewTransaction encodes ins into an unsigned transaction.
func NewTransaction(id string, program common.Address, ins instruction.Instruction, accounts []AccountMeta) (*Transaction, error) {
	data, err := instruction.Encode(ins)
	if err != nil {
		return nil, fmt.Errorf("new transaction: %w", err)
	}
	return &Transaction{
		ID:       id,
		Program:  program,
		Data:     data,
		Accounts: accounts,
	}, nil
}

// SigningHash is the digest every signer signs. It commits to the id,
// program, instruction bytes and account list.
func (tx *Transaction) SigningHash() common.Hash {
	var buf bytes.Buffer
	buf.WriteString(txDomain)
	writeBytes(&buf, []byte(tx.ID))
	buf.Write(tx.Program.Bytes())
	writeBytes(&buf, tx.Data)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(tx.Accounts)))
	for _, m := range tx.Accounts {
		buf.Write(m.Key.Bytes())
		var flags byte
		if m.IsSigner {
			flags |= 1
		}
		if m.IsWritable {
			flags |= 2
		}
		buf.WriteByte(flags)
	}
	return crypto.Keccak256Hash(buf.Bytes())
}

func writeBytes(buf *bytes.Buffer, b []byte) {
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(b)))
	buf.Write(b)
}

// Sign appends a signature by key.
func (tx *Transaction) Sign(key *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(tx.SigningHash().Bytes(), key)
	if err != nil {
		return fmt.Errorf("sign transaction %s: %w", tx.ID, err)
	}
	tx.Signatures = append(tx.Signatures, sig)
	return nil
}

// Signers recovers the addresses that produced valid signatures.
// Malformed signatures are skipped; the affected metas simply do not count
// as signed.
func (tx *Transaction) Signers() map[common.Address]bool {
	hash := tx.SigningHash().Bytes()
	out := make(map[common.Address]bool, len(tx.Signatures))
	for _, sig := range tx.Signatures {
		pub, err := crypto.SigToPub(hash, sig)
		if err != nil {
			continue
		}
		out[crypto.PubkeyToAddress(*pub)] = true
	}
	return out
}

// Payload renders the transaction as a canonical object for the log.
func (tx *Transaction) Payload() ir.Object {
	accounts := make(ir.Array, len(tx.Accounts))
	for i, m := range tx.Accounts {
		accounts[i] = ir.Object{
			"key":      ir.String(m.Key.Hex()),
			"signer":   ir.Bool(m.IsSigner),
			"writable": ir.Bool(m.IsWritable),
		}
	}
	sigs := make(ir.Array, len(tx.Signatures))
	for i, s := range tx.Signatures {
		sigs[i] = ir.String(hexutil.Encode(s))
	}
	return ir.Object{
		"id":         ir.String(tx.ID),
		"program":    ir.String(tx.Program.Hex()),
		"data":       ir.String(hexutil.Encode(tx.Data)),
		"accounts":   accounts,
		"signatures": sigs,
	}
}

type txJSON struct {
	ID       string `json:"id"`
	Program  string `json:"program"`
	Data     string `json:"data"`
	Accounts []struct {
		Key      string `json:"key"`
		Signer   bool   `json:"signer"`
		Writable bool   `json:"writable"`
	} `json:"accounts"`
	Signatures []string `json:"signatures"`
}

// ParseTransaction decodes a payload written by Payload.
func ParseTransaction(payload []byte) (*Transaction, error) {
	var raw txJSON
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse transaction: %w", err)
	}
	if !common.IsHexAddress(raw.Program) {
		return nil, fmt.Errorf("parse transaction %s: invalid program %q", raw.ID, raw.Program)
	}

	data, err := hexutil.Decode(raw.Data)
	if err != nil {
		return nil, fmt.Errorf("parse transaction %s: data: %w", raw.ID, err)
	}
	tx := &Transaction{
		ID:      raw.ID,
		Program: common.HexToAddress(raw.Program),
		Data:    data,
	}
	for _, a := range raw.Accounts {
		if !common.IsHexAddress(a.Key) {
			return nil, fmt.Errorf("parse transaction %s: invalid account %q", raw.ID, a.Key)
		}
		tx.Accounts = append(tx.Accounts, AccountMeta{
			Key:        common.HexToAddress(a.Key),
			IsSigner:   a.Signer,
			IsWritable: a.Writable,
		})
	}
	for _, s := range raw.Signatures {
		sig, err := hexutil.Decode(s)
		if err != nil {
			return nil, fmt.Errorf("parse transaction %s: signature: %w", raw.ID, err)
		}
		tx.Signatures = append(tx.Signatures, sig)
	}
	return tx, nil
}
