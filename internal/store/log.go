package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Log entry kinds.
const (
	KindInstruction = "instruction"
	KindAirdrop     = "airdrop"
	KindMint        = "mint"
)

// OutcomeOK marks an accepted transaction. Rejected ones carry the error
// code name instead.
const OutcomeOK = "ok"

// Entry is one row of the transaction log.
type Entry struct {
	Seq     int64
	TxID    string
	Kind    string
	Program common.Address

	// Payload is the canonical JSON of the submitted transaction.
	Payload string

	Outcome string
	Message string

	// StateHash hashes the state slot after the transaction, or is empty
	// when the slot does not exist yet.
	StateHash string

	EntryHash     string
	EngineVersion string
	FormatVersion string
}

// AppendLog writes an entry inside the transaction.
func (t *Tx) AppendLog(ctx context.Context, e *Entry) error {
	return appendLog(ctx, t.tx, e)
}

// AppendLog writes an entry outside any transaction. Used for rejected
// instructions, whose own transaction has been rolled back.
func (s *Store) AppendLog(ctx context.Context, e *Entry) error {
	return appendLog(ctx, s.db, e)
}

func appendLog(ctx context.Context, q querier, e *Entry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO tx_log
		(seq, tx_id, kind, program, payload, outcome, message, state_hash, entry_hash, engine_version, format_version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.Seq,
		e.TxID,
		e.Kind,
		e.Program.Hex(),
		e.Payload,
		e.Outcome,
		e.Message,
		e.StateHash,
		e.EntryHash,
		e.EngineVersion,
		e.FormatVersion,
	)
	if err != nil {
		return fmt.Errorf("append log %s: %w", e.TxID, err)
	}
	return nil
}

const entryColumns = `seq, tx_id, kind, program, payload, outcome, message, state_hash, entry_hash, engine_version, format_version`

// ReadLog returns every log entry ordered by seq.
func (s *Store) ReadLog(ctx context.Context) ([]Entry, error) {
	return s.readLog(ctx, `SELECT `+entryColumns+` FROM tx_log ORDER BY seq ASC`)
}

// ReadLogKind returns entries of one kind ordered by seq.
func (s *Store) ReadLogKind(ctx context.Context, kind string) ([]Entry, error) {
	return s.readLog(ctx, `SELECT `+entryColumns+` FROM tx_log WHERE kind = ? ORDER BY seq ASC`, kind)
}

// ReadEntry returns the entry for a transaction id.
func (s *Store) ReadEntry(ctx context.Context, txID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM tx_log WHERE tx_id = ?`, txID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("entry %s: %w", txID, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("read entry %s: %w", txID, err)
	}
	return e, nil
}

// LastSeq returns the highest seq in the log, or 0 for an empty log.
// Used to resume the logical clock when a database is reopened.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM tx_log`).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

func (s *Store) readLog(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var e Entry
	var program string
	err := row.Scan(
		&e.Seq,
		&e.TxID,
		&e.Kind,
		&program,
		&e.Payload,
		&e.Outcome,
		&e.Message,
		&e.StateHash,
		&e.EntryHash,
		&e.EngineVersion,
		&e.FormatVersion,
	)
	if err != nil {
		return Entry{}, err
	}
	e.Program = common.HexToAddress(program)
	return e, nil
}
