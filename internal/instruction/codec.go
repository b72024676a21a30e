package instruction

import (
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ErrInvalidInstruction is wrapped by every decode failure.
var ErrInvalidInstruction = errors.New("invalid instruction data")

// MaxStringLen bounds file names and descriptions on the wire.
const MaxStringLen = 4096

// Decode parses instruction bytes into a variant.
func Decode(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInstruction)
	}

	r := &reader{buf: data[1:]}
	var ins Instruction
	switch Tag(data[0]) {
	case TagCreateMarketItem:
		v := &CreateMarketItem{}
		v.AssetProgram = r.address()
		v.AssetID = r.address()
		r.u128(&v.Price)
		v.FileName = r.str()
		v.Description = r.str()
		v.CashBackPercent = r.u8()
		ins = v
	case TagPurchaseSale:
		v := &PurchaseSale{}
		v.AssetProgram = r.address()
		r.u128(&v.Price)
		r.u128(&v.ItemID)
		ins = v
	case TagCreateGacha:
		v := &CreateGacha{}
		v.AssetProgram = r.address()
		v.Qty = r.u8()
		ins = v
	case TagGacha:
		v := &Gacha{}
		v.AssetProgram = r.address()
		v.Qty = r.u8()
		r.u128(&v.Price)
		r.u128(&v.Fee)
		ins = v
	case TagInitState:
		v := &InitState{}
		r.u128(&v.ListingPrice)
		ins = v
	default:
		return nil, fmt.Errorf("%w: unknown tag %d", ErrInvalidInstruction, data[0])
	}

	if r.err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInstruction, Tag(data[0]), r.err)
	}
	if len(r.buf) != 0 {
		return nil, fmt.Errorf("%w: %s: %d trailing bytes", ErrInvalidInstruction, Tag(data[0]), len(r.buf))
	}
	return ins, nil
}

// Encode serializes an instruction. It fails only for values the wire
// cannot carry: amounts above 128 bits or oversized strings.
func Encode(ins Instruction) ([]byte, error) {
	w := &writer{buf: []byte{byte(ins.Tag())}}
	switch v := ins.(type) {
	case *CreateMarketItem:
		w.address(v.AssetProgram)
		w.address(v.AssetID)
		w.u128(&v.Price)
		w.str(v.FileName)
		w.str(v.Description)
		w.u8(v.CashBackPercent)
	case *PurchaseSale:
		w.address(v.AssetProgram)
		w.u128(&v.Price)
		w.u128(&v.ItemID)
	case *CreateGacha:
		w.address(v.AssetProgram)
		w.u8(v.Qty)
	case *Gacha:
		w.address(v.AssetProgram)
		w.u8(v.Qty)
		w.u128(&v.Price)
		w.u128(&v.Fee)
	case *InitState:
		w.u128(&v.ListingPrice)
	default:
		return nil, fmt.Errorf("encode instruction: unsupported type %T", ins)
	}
	if w.err != nil {
		return nil, fmt.Errorf("encode %s: %w", ins.Tag(), w.err)
	}
	return w.buf, nil
}

// MustEncode is like Encode but panics on error.
// Use only in tests or with values known to fit the wire.
func MustEncode(ins Instruction) []byte {
	data, err := Encode(ins)
	if err != nil {
		panic(err)
	}
	return data
}

// reader consumes fields and remembers the first error.
type reader struct {
	buf []byte
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf) < n {
		r.err = fmt.Errorf("short payload: need %d bytes, have %d", n, len(r.buf))
		return nil
	}
	b := r.buf[:n]
	r.buf = r.buf[n:]
	return b
}

func (r *reader) address() common.Address {
	b := r.take(common.AddressLength)
	if b == nil {
		return common.Address{}
	}
	return common.BytesToAddress(b)
}

func (r *reader) u8() uint8 {
	b := r.take(1)
	if b == nil {
		return 0
	}
	return b[0]
}

func (r *reader) u128(dst *uint256.Int) {
	b := r.take(16)
	if b == nil {
		return
	}
	*dst = uint256.Int{binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:]), 0, 0}
}

func (r *reader) str() string {
	lb := r.take(4)
	if lb == nil {
		return ""
	}
	n := binary.LittleEndian.Uint32(lb)
	if n > MaxStringLen {
		r.err = fmt.Errorf("string length %d exceeds %d", n, MaxStringLen)
		return ""
	}
	b := r.take(int(n))
	if b == nil {
		return ""
	}
	if !utf8.Valid(b) {
		r.err = errors.New("string is not valid UTF-8")
		return ""
	}
	return string(b)
}

type writer struct {
	buf []byte
	err error
}

func (w *writer) address(a common.Address) {
	w.buf = append(w.buf, a.Bytes()...)
}

func (w *writer) u8(v uint8) {
	w.buf = append(w.buf, v)
}

func (w *writer) u128(v *uint256.Int) {
	if v[2] != 0 || v[3] != 0 {
		if w.err == nil {
			w.err = fmt.Errorf("value %s exceeds 128 bits", v.Dec())
		}
		return
	}
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v[0])
	w.buf = binary.LittleEndian.AppendUint64(w.buf, v[1])
}

func (w *writer) str(s string) {
	if len(s) > MaxStringLen {
		if w.err == nil {
			w.err = fmt.Errorf("string length %d exceeds %d", len(s), MaxStringLen)
		}
		return
	}
	if !utf8.ValidString(s) {
		if w.err == nil {
			w.err = errors.New("string is not valid UTF-8")
		}
		return
	}
	w.buf = binary.LittleEndian.AppendUint32(w.buf, uint32(len(s)))
	w.buf = append(w.buf, s...)
}
