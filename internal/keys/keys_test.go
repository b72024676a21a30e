package keys

import (
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	iterations = 1000
}

func TestEncryptDecrypt(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	blob, err := Encrypt(key, "hunter2")
	require.NoError(t, err)

	got, err := Decrypt(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, crypto.FromECDSA(key), crypto.FromECDSA(got))

	_, err = Decrypt(blob, "wrong")
	assert.ErrorContains(t, err, "wrong password")
}

func TestEncryptRequiresPassword(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)

	_, err = Encrypt(key, "")
	assert.ErrorIs(t, err, ErrNoPassword)
	_, err = Decrypt([]byte(`{}`), "")
	assert.ErrorIs(t, err, ErrNoPassword)
}

func TestDecryptRejectsTamperedAddress(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	other, err := Generate()
	require.NoError(t, err)

	blob, err := Encrypt(key, "pw")
	require.NoError(t, err)

	var f fileJSON
	require.NoError(t, json.Unmarshal(blob, &f))
	f.Address = crypto.PubkeyToAddress(other.PublicKey).Hex()
	blob, err = json.Marshal(f)
	require.NoError(t, err)

	_, err = Decrypt(blob, "pw")
	assert.ErrorContains(t, err, "does not match")
}

func TestDecryptRejectsUnknownVersion(t *testing.T) {
	_, err := Decrypt([]byte(`{"version":2}`), "pw")
	assert.ErrorContains(t, err, "unsupported version 2")
}

func TestWriteFileAndLoad(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "seller.json")

	require.NoError(t, WriteFile(path, key, "pw"))
	assert.Error(t, WriteFile(path, key, "pw"), "existing file must not be overwritten")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	addr, err := FileAddress(path)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), addr)

	loaded, err := Load(Source{Path: path, Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, key.D, loaded.D)
}

func TestLoadRaw(t *testing.T) {
	key, err := Generate()
	require.NoError(t, err)
	raw := "0x" + hex.EncodeToString(crypto.FromECDSA(key))

	loaded, err := Load(Source{Raw: raw, Path: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, key.D, loaded.D)

	_, err = Load(Source{Raw: "zz"})
	assert.Error(t, err)

	_, err = Load(Source{})
	assert.ErrorIs(t, err, ErrNoSource)
}
