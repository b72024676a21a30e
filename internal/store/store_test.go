package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	alice   = common.HexToAddress("0x00000000000000000000000000000000000a11ce")
	bob     = common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	program = common.HexToAddress("0x0000000000000000000000000000000000c0ffee")
	token   = common.HexToAddress("0x0000000000000000000000000000000000000001")
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	for _, table := range []string{"accounts", "assets", "tx_log", "meta"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %q missing", table)
	}

	version, err := s.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	assert.Error(t, err)
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.SetMeta(ctx, "program_id", program.Hex()))
	got, err := s.Meta(ctx, "program_id")
	require.NoError(t, err)
	assert.Equal(t, program.Hex(), got)
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := map[string]string{
		"journal_mode": "wal",
		"synchronous":  "1",
		"busy_timeout": "5000",
		"foreign_keys": "1",
	}
	for name, want := range tests {
		var got string
		require.NoError(t, s.db.QueryRow("PRAGMA "+name).Scan(&got))
		assert.Equal(t, want, got, name)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	assert.NoError(t, s.Close())
}

func TestMetaNotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Meta(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAccountRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Account(ctx, alice)
	require.ErrorIs(t, err, ErrNotFound)

	acct := &Account{Address: alice, Owner: program, Space: 645, Data: []byte(`{"x":1}`)}
	acct.Balance.SetFromDecimal("340282366920938463463374607431768211455")

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		return tx.PutAccount(ctx, acct)
	}))

	got, err := s.Account(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	// Plain accounts store no owner and no data.
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		return tx.PutAccount(ctx, &Account{Address: bob, Balance: *uint256.NewInt(3)})
	}))
	plain, err := s.Account(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, plain.Owner)
	assert.Nil(t, plain.Data)
}

func TestInTxRollsBackOnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(tx *Tx) error {
		if err := tx.PutAccount(ctx, &Account{Address: alice, Balance: *uint256.NewInt(10)}); err != nil {
			return err
		}
		if err := tx.PutAsset(ctx, &Asset{Program: program, Asset: token, Holder: alice}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Account(ctx, alice)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Asset(ctx, program, token)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInTxRollsBackOnPanic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	assert.Panics(t, func() {
		_ = s.InTx(ctx, func(tx *Tx) error {
			_ = tx.PutAccount(ctx, &Account{Address: alice})
			panic("boom")
		})
	})

	_, err := s.Account(ctx, alice)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAssetsAndHoldings(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	token2 := common.HexToAddress("0x0000000000000000000000000000000000000002")

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		if err := tx.PutAsset(ctx, &Asset{Program: program, Asset: token2, Holder: alice}); err != nil {
			return err
		}
		return tx.PutAsset(ctx, &Asset{Program: program, Asset: token, Holder: alice, Escrow: bob})
	}))

	held, err := s.Holdings(ctx, alice)
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, token, held[0].Asset)
	assert.Equal(t, bob, held[0].Escrow)
	assert.Equal(t, common.Address{}, held[1].Escrow)

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		a, err := tx.Asset(ctx, program, token)
		if err != nil {
			return err
		}
		a.Holder = bob
		return tx.PutAsset(ctx, a)
	}))

	held, err = s.Holdings(ctx, bob)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, token, held[0].Asset)
}

func TestListAccountsAndAssets(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		for _, a := range []*Account{{Address: bob}, {Address: alice, Data: []byte("x")}} {
			a.Balance.SetUint64(7)
			if err := tx.PutAccount(ctx, a); err != nil {
				return err
			}
		}
		return tx.PutAsset(ctx, &Asset{Program: program, Asset: token, Holder: bob})
	}))

	accts, err := s.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accts, 2)
	assert.Less(t, accts[0].Address.Hex(), accts[1].Address.Hex())
	assert.Equal(t, uint64(7), accts[1].Balance.Uint64())

	assets, err := s.Assets(ctx)
	require.NoError(t, err)
	require.Len(t, assets, 1)
	assert.Equal(t, bob, assets[0].Holder)
}

func TestLogOrderingAndLookup(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	seq, err := s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Zero(t, seq)

	entries := []*Entry{
		{Seq: 1, TxID: "tx-1", Kind: KindAirdrop, Payload: `{}`, Outcome: OutcomeOK, EntryHash: "h1", EngineVersion: "0.1.0", FormatVersion: "1"},
		{Seq: 2, TxID: "tx-2", Kind: KindInstruction, Program: program, Payload: `{}`, Outcome: "InvalidPrice", Message: "price must be positive", EntryHash: "h2", EngineVersion: "0.1.0", FormatVersion: "1"},
		{Seq: 3, TxID: "tx-3", Kind: KindInstruction, Program: program, Payload: `{}`, Outcome: OutcomeOK, StateHash: "s3", EntryHash: "h3", EngineVersion: "0.1.0", FormatVersion: "1"},
	}
	require.NoError(t, s.AppendLog(ctx, entries[0]))
	require.NoError(t, s.InTx(ctx, func(tx *Tx) error {
		if err := tx.AppendLog(ctx, entries[2]); err != nil {
			return err
		}
		return tx.AppendLog(ctx, entries[1])
	}))

	all, err := s.ReadLog(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, e := range all {
		assert.Equal(t, int64(i+1), e.Seq)
	}

	ins, err := s.ReadLogKind(ctx, KindInstruction)
	require.NoError(t, err)
	assert.Len(t, ins, 2)

	e, err := s.ReadEntry(ctx, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, *entries[1], e)

	_, err = s.ReadEntry(ctx, "tx-404")
	assert.ErrorIs(t, err, ErrNotFound)

	seq, err = s.LastSeq(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), seq)

	// tx ids are unique.
	dup := *entries[0]
	dup.Seq = 4
	assert.Error(t, s.AppendLog(ctx, &dup))
}
