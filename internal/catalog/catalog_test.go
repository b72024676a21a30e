package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	nft    = "0x00000000000000000000000000000000000000aa"
	other  = "0x00000000000000000000000000000000000000bb"
	sword  = "0x0000000000000000000000000000000000000001"
	shield = "0x0000000000000000000000000000000000000002"
)

func TestCompileString(t *testing.T) {
	src := `
asset_program: "` + nft + `"
listing: {
	sword: {
		asset:             "` + sword + `"
		price:             5
		file_name:         "sword.png"
		cash_back_percent: 10
	}
	shield: {
		asset:         "` + shield + `"
		asset_program: "` + other + `"
		price:         "340282366920938463463374607431768211455"
		file_name:     "shield.png"
		description:   "sturdy"
	}
}
`
	got, err := CompileString(src, "catalog.cue")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Sorted by name.
	assert.Equal(t, "shield", got[0].Name)
	assert.Equal(t, common.HexToAddress(other), got[0].AssetProgram)
	assert.Equal(t, "340282366920938463463374607431768211455", got[0].Price.Dec())
	assert.Equal(t, "sturdy", got[0].Description)
	assert.Zero(t, got[0].CashBackPercent)

	assert.Equal(t, "sword", got[1].Name)
	assert.Equal(t, common.HexToAddress(nft), got[1].AssetProgram)
	assert.Equal(t, common.HexToAddress(sword), got[1].AssetID)
	assert.Equal(t, uint64(5), got[1].Price.Uint64())
	assert.Equal(t, uint8(10), got[1].CashBackPercent)
	assert.Empty(t, got[1].Description)
}

func TestCompileRejects(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{
			name:  "cash back at limit",
			src:   `listing: a: {asset: "` + sword + `", asset_program: "` + nft + `", price: 1, file_name: "a", cash_back_percent: 100}`,
			field: "cash_back_percent",
		},
		{
			name:  "zero price",
			src:   `listing: a: {asset: "` + sword + `", asset_program: "` + nft + `", price: 0, file_name: "a"}`,
			field: "price",
		},
		{
			name:  "price above 128 bits",
			src:   `listing: a: {asset: "` + sword + `", asset_program: "` + nft + `", price: 340282366920938463463374607431768211456, file_name: "a"}`,
			field: "price",
		},
		{
			name:  "bad address",
			src:   `listing: a: {asset: "0x12", asset_program: "` + nft + `", price: 1, file_name: "a"}`,
			field: "asset",
		},
		{
			name:  "missing file name",
			src:   `listing: a: {asset: "` + sword + `", asset_program: "` + nft + `", price: 1}`,
			field: "file_name",
		},
		{
			name:  "no program anywhere",
			src:   `listing: a: {asset: "` + sword + `", price: 1, file_name: "a"}`,
			field: "asset_program",
		},
		{
			name:  "no listings",
			src:   `asset_program: "` + nft + `"`,
			field: "listing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := CompileString(tt.src, "bad.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	_, err := CompileString(`listing: a: {asset: "`+sword+`", price: 1, file_name: "a"}`, "pos.cue")
	var ce *CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "listing.a.asset_program", ce.Field)
	assert.Contains(t, ce.Error(), "required here or at the top level")
}

func TestLoadFileAndDir(t *testing.T) {
	dir := t.TempDir()
	body := "package seed\n\nasset_program: \"" + nft + "\"\nlisting: sword: {asset: \"" + sword + "\", price: 3, file_name: \"s.png\"}\n"
	path := filepath.Join(dir, "catalog.cue")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	fromFile, err := Load(path)
	require.NoError(t, err)
	require.Len(t, fromFile, 1)
	assert.Equal(t, uint64(3), fromFile[0].Price.Uint64())

	fromDir, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, fromFile, fromDir)

	_, err = Load(filepath.Join(dir, "missing.cue"))
	assert.Error(t, err)
}
