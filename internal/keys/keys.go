// Package keys stores secp256k1 signing keys encrypted at rest.
//
// A key file is JSON holding a PBKDF2-HMAC-SHA256 salt, an AES-256-GCM nonce
// and the sealed 32-byte private key, all base64 encoded.
package keys

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltLen        = 16
	aesKeyLen      = 32
	currentVersion = 1
)

// iterations is the PBKDF2 work factor. Lowered in tests.
var iterations = 480_000

var (
	// ErrNoPassword is returned when encrypting or decrypting without a password.
	ErrNoPassword = errors.New("keys: password must not be empty")

	// ErrNoSource is returned by Load when neither a raw key nor a file is set.
	ErrNoSource = errors.New("keys: no key source configured")
)

type fileJSON struct {
	Version    int    `json:"version"`
	Address    string `json:"address"`
	Salt       string `json:"salt"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

// Generate returns a fresh random key.
func Generate() (*ecdsa.PrivateKey, error) {
	k, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("keys: generate: %w", err)
	}
	return k, nil
}

// Encrypt seals key under password. The address is stored in clear so a key
// file can be identified without the password.
func Encrypt(key *ecdsa.PrivateKey, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrNoPassword
	}

	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("keys: salt: %w", err)
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("keys: nonce: %w", err)
	}

	out := fileJSON{
		Version:    currentVersion,
		Address:    crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Nonce:      base64.StdEncoding.EncodeToString(nonce),
		Ciphertext: base64.StdEncoding.EncodeToString(gcm.Seal(nil, nonce, crypto.FromECDSA(key), nil)),
	}
	return json.MarshalIndent(out, "", "  ")
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(data []byte, password string) (*ecdsa.PrivateKey, error) {
	if password == "" {
		return nil, ErrNoPassword
	}

	var stored fileJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("keys: parse key file: %w", err)
	}
	if stored.Version != currentVersion {
		return nil, fmt.Errorf("keys: unsupported version %d", stored.Version)
	}

	var parts [3][]byte
	for i, s := range []string{stored.Salt, stored.Nonce, stored.Ciphertext} {
		b, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("keys: decode field %d: %w", i, err)
		}
		parts[i] = b
	}
	salt, nonce, sealed := parts[0], parts[1], parts[2]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("keys: nonce is %d bytes", len(nonce))
	}
	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("keys: decryption failed (wrong password?): %w", err)
	}

	key, err := crypto.ToECDSA(plain)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	if stored.Address != "" && common.HexToAddress(stored.Address) != crypto.PubkeyToAddress(key.PublicKey) {
		return nil, fmt.Errorf("keys: file address %s does not match key", stored.Address)
	}
	return key, nil
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	derived := pbkdf2.Key([]byte(password), salt, iterations, aesKeyLen, sha256.New)
	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("keys: cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keys: gcm: %w", err)
	}
	return gcm, nil
}

// WriteFile encrypts key to path with owner-only permissions. An existing
// file is never overwritten.
func WriteFile(path string, key *ecdsa.PrivateKey, password string) error {
	data, err := Encrypt(key, password)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("keys: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("keys: write %s: %w", path, err)
	}
	return f.Close()
}

// FileAddress reads the clear address recorded in a key file.
func FileAddress(path string) (common.Address, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return common.Address{}, fmt.Errorf("keys: %w", err)
	}
	var stored fileJSON
	if err := json.Unmarshal(data, &stored); err != nil {
		return common.Address{}, fmt.Errorf("keys: parse %s: %w", path, err)
	}
	if !common.IsHexAddress(stored.Address) {
		return common.Address{}, fmt.Errorf("keys: %s records no address", path)
	}
	return common.HexToAddress(stored.Address), nil
}

// Source names where a signing key comes from.
type Source struct {
	// Raw is a hex private key, with or without 0x. Takes precedence.
	Raw string

	// Path is a file written by WriteFile, opened with Password.
	Path     string
	Password string
}

// Load resolves a signing key from src.
func Load(src Source) (*ecdsa.PrivateKey, error) {
	if src.Raw != "" {
		k, err := crypto.HexToECDSA(strings.TrimPrefix(src.Raw, "0x"))
		if err != nil {
			return nil, fmt.Errorf("keys: raw key: %w", err)
		}
		return k, nil
	}
	if src.Path != "" {
		data, err := os.ReadFile(src.Path)
		if err != nil {
			return nil, fmt.Errorf("keys: %w", err)
		}
		return Decrypt(data, src.Password)
	}
	return nil, ErrNoSource
}
