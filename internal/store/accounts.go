package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Account is one row of the accounts table.
type Account struct {
	Address common.Address
	Owner   common.Address
	Balance uint256.Int
	Space   uint64
	Data    []byte
}

// Asset is one row of the assets table. A zero Escrow means no escrow.
type Asset struct {
	Program common.Address
	Asset   common.Address
	Holder  common.Address
	Escrow  common.Address
}

// Account reads an account inside the transaction.
func (t *Tx) Account(ctx context.Context, addr common.Address) (*Account, error) {
	return readAccount(ctx, t.tx, addr)
}

// PutAccount inserts or replaces an account inside the transaction.
func (t *Tx) PutAccount(ctx context.Context, a *Account) error {
	return writeAccount(ctx, t.tx, a)
}

// Asset reads an asset inside the transaction.
func (t *Tx) Asset(ctx context.Context, program, asset common.Address) (*Asset, error) {
	return readAsset(ctx, t.tx, program, asset)
}

// PutAsset inserts or replaces an asset inside the transaction.
func (t *Tx) PutAsset(ctx context.Context, a *Asset) error {
	return writeAsset(ctx, t.tx, a)
}

// Account reads an account outside any transaction.
func (s *Store) Account(ctx context.Context, addr common.Address) (*Account, error) {
	return readAccount(ctx, s.db, addr)
}

// Asset reads an asset outside any transaction.
func (s *Store) Asset(ctx context.Context, program, asset common.Address) (*Asset, error) {
	return readAsset(ctx, s.db, program, asset)
}

// Holdings lists the assets held by holder, ordered by program then asset.
func (s *Store) Holdings(ctx context.Context, holder common.Address) ([]Asset, error) {
	return s.queryAssets(ctx, `
		SELECT program, asset, holder, escrow FROM assets
		WHERE holder = ?
		ORDER BY program ASC, asset ASC
	`, holder.Hex())
}

// Accounts lists every account ordered by address.
func (s *Store) Accounts(ctx context.Context) ([]Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, owner, balance, space, data FROM accounts
		ORDER BY address ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("accounts: %w", err)
	}
	defer rows.Close()

	var out []Account
	for rows.Next() {
		var addr, owner, balance string
		var space int64
		var data []byte
		if err := rows.Scan(&addr, &owner, &balance, &space, &data); err != nil {
			return nil, fmt.Errorf("accounts: scan: %w", err)
		}
		a := Account{
			Address: common.HexToAddress(addr),
			Owner:   parseOptionalAddress(owner),
			Space:   uint64(space),
			Data:    data,
		}
		if err := a.Balance.SetFromDecimal(balance); err != nil {
			return nil, fmt.Errorf("accounts: %s balance %q: %w", addr, balance, err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Assets lists every asset ordered by program then asset.
func (s *Store) Assets(ctx context.Context) ([]Asset, error) {
	return s.queryAssets(ctx, `
		SELECT program, asset, holder, escrow FROM assets
		ORDER BY program ASC, asset ASC
	`)
}

func (s *Store) queryAssets(ctx context.Context, query string, args ...any) ([]Asset, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	defer rows.Close()

	var out []Asset
	for rows.Next() {
		var program, asset, holder, escrow string
		if err := rows.Scan(&program, &asset, &holder, &escrow); err != nil {
			return nil, fmt.Errorf("assets: scan: %w", err)
		}
		out = append(out, Asset{
			Program: common.HexToAddress(program),
			Asset:   common.HexToAddress(asset),
			Holder:  common.HexToAddress(holder),
			Escrow:  parseOptionalAddress(escrow),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("assets: %w", err)
	}
	return out, nil
}

func readAccount(ctx context.Context, q querier, addr common.Address) (*Account, error) {
	var owner, balance string
	var space int64
	var data []byte
	err := q.QueryRowContext(ctx, `
		SELECT owner, balance, space, data FROM accounts WHERE address = ?
	`, addr.Hex()).Scan(&owner, &balance, &space, &data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", addr.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read account %s: %w", addr.Hex(), err)
	}

	a := &Account{
		Address: addr,
		Owner:   parseOptionalAddress(owner),
		Space:   uint64(space),
		Data:    data,
	}
	if err := a.Balance.SetFromDecimal(balance); err != nil {
		return nil, fmt.Errorf("read account %s: balance %q: %w", addr.Hex(), balance, err)
	}
	return a, nil
}

func writeAccount(ctx context.Context, q querier, a *Account) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO accounts (address, owner, balance, space, data)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address) DO UPDATE SET
			owner = excluded.owner,
			balance = excluded.balance,
			space = excluded.space,
			data = excluded.data
	`,
		a.Address.Hex(),
		formatOptionalAddress(a.Owner),
		a.Balance.Dec(),
		int64(a.Space),
		a.Data,
	)
	if err != nil {
		return fmt.Errorf("write account %s: %w", a.Address.Hex(), err)
	}
	return nil
}

func readAsset(ctx context.Context, q querier, program, asset common.Address) (*Asset, error) {
	var holder, escrow string
	err := q.QueryRowContext(ctx, `
		SELECT holder, escrow FROM assets WHERE program = ? AND asset = ?
	`, program.Hex(), asset.Hex()).Scan(&holder, &escrow)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("asset %s/%s: %w", program.Hex(), asset.Hex(), ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read asset %s/%s: %w", program.Hex(), asset.Hex(), err)
	}
	return &Asset{
		Program: program,
		Asset:   asset,
		Holder:  common.HexToAddress(holder),
		Escrow:  parseOptionalAddress(escrow),
	}, nil
}

func writeAsset(ctx context.Context, q querier, a *Asset) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO assets (program, asset, holder, escrow)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(program, asset) DO UPDATE SET
			holder = excluded.holder,
			escrow = excluded.escrow
	`,
		a.Program.Hex(),
		a.Asset.Hex(),
		a.Holder.Hex(),
		formatOptionalAddress(a.Escrow),
	)
	if err != nil {
		return fmt.Errorf("write asset %s/%s: %w", a.Program.Hex(), a.Asset.Hex(), err)
	}
	return nil
}

func parseOptionalAddress(s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func formatOptionalAddress(a common.Address) string {
	if a == (common.Address{}) {
		return ""
	}
	return a.Hex()
}
