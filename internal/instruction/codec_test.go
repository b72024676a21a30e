package instruction

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	nftProgram = common.HexToAddress("0x1111111111111111111111111111111111111111")
	tokenID    = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

func TestEncodeInitStateLayout(t *testing.T) {
	ins := &InitState{}
	ins.ListingPrice.SetUint64(258)

	data, err := Encode(ins)
	require.NoError(t, err)
	// tag 4, then 0x0102 little-endian in 16 bytes
	assert.Equal(t, "04"+"0201000000000000"+"0000000000000000", hex.EncodeToString(data))
}

func TestEncodeCreateGachaLayout(t *testing.T) {
	data, err := Encode(&CreateGacha{AssetProgram: nftProgram, Qty: 3})
	require.NoError(t, err)
	require.Len(t, data, 1+20+1)
	assert.Equal(t, byte(TagCreateGacha), data[0])
	assert.Equal(t, nftProgram.Bytes(), data[1:21])
	assert.Equal(t, byte(3), data[21])
}

func TestDecodeEachVariant(t *testing.T) {
	create := &CreateMarketItem{
		AssetProgram:    nftProgram,
		AssetID:         tokenID,
		FileName:        "sword.png",
		Description:     "a very sharp sword",
		CashBackPercent: 7,
	}
	create.Price.SetUint64(5)

	purchase := &PurchaseSale{AssetProgram: nftProgram}
	purchase.Price.SetUint64(5)
	purchase.ItemID.SetUint64(1)

	gacha := &Gacha{AssetProgram: nftProgram, Qty: 2}
	gacha.Price.SetUint64(5)
	gacha.Fee.SetUint64(10)

	boot := &InitState{}
	boot.ListingPrice.Set(uint256.NewInt(1))

	for _, ins := range []Instruction{create, purchase, &CreateGacha{AssetProgram: nftProgram, Qty: 1}, gacha, boot} {
		t.Run(ins.Tag().String(), func(t *testing.T) {
			data := MustEncode(ins)
			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, ins, got)
			assert.Equal(t, ins.Fields(), got.Fields())
		})
	}
}

func TestDecodeMaxU128(t *testing.T) {
	ins := &InitState{}
	ins.ListingPrice = uint256.Int{^uint64(0), ^uint64(0), 0, 0}

	got, err := Decode(MustEncode(ins))
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211455", got.(*InitState).ListingPrice.Dec())
}

func TestDecodeErrors(t *testing.T) {
	valid := MustEncode(&CreateGacha{AssetProgram: nftProgram, Qty: 1})

	// CreateMarketItem whose file name length is past the limit.
	huge := append([]byte{byte(TagCreateMarketItem)}, make([]byte, 20+20+16)...)
	huge = append(huge, 0xff, 0xff, 0xff, 0x7f)

	tests := []struct {
		name string
		data []byte
		msg  string
	}{
		{"empty", nil, "empty payload"},
		{"unknown tag", []byte{9}, "unknown tag 9"},
		{"short", valid[:10], "short payload"},
		{"trailing", append(append([]byte{}, valid...), 0xff), "trailing bytes"},
		{"huge string", huge, "exceeds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, ErrInvalidInstruction)
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestDecodeRejectsInvalidUTF8(t *testing.T) {
	data := []byte{byte(TagCreateMarketItem)}
	data = append(data, make([]byte, 20+20+16)...)
	data = append(data, 2, 0, 0, 0, 0xc3, 0x28) // invalid UTF-8 file name
	data = append(data, 0, 0, 0, 0)             // empty description
	data = append(data, 0)                      // cash back

	_, err := Decode(data)
	require.ErrorIs(t, err, ErrInvalidInstruction)
	assert.Contains(t, err.Error(), "UTF-8")
}

func TestEncodeRejectsWideValues(t *testing.T) {
	ins := &InitState{}
	ins.ListingPrice.Lsh(uint256.NewInt(1), 128)

	_, err := Encode(ins)
	assert.ErrorContains(t, err, "exceeds 128 bits")
}

func TestTagNames(t *testing.T) {
	assert.Equal(t, "create_market_item", TagCreateMarketItem.String())
	assert.Equal(t, "purchase_sale", TagPurchaseSale.String())
	assert.Equal(t, "create_gacha", TagCreateGacha.String())
	assert.Equal(t, "gacha", TagGacha.String())
	assert.Equal(t, "init_state", TagInitState.String())
	assert.Equal(t, "unknown", Tag(42).String())
}
