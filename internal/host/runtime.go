package host

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/engine"
	"github.com/tungla20/Solana-MKP/internal/ir"
	"github.com/tungla20/Solana-MKP/internal/lock"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// OutcomeInternal is logged when processing failed for a reason other than
// a rejection code, such as a broken registry invariant.
const OutcomeInternal = "InternalError"

// ErrProgramMismatch is returned when a database is opened for a different
// program than the one it was created with, or a transaction targets
// another program.
var ErrProgramMismatch = errors.New("program mismatch")

// Options configures a Runtime.
type Options struct {
	Program     common.Address
	MaxItems    int
	RentPerByte uint64

	// Locker serializes instructions on the state slot. Defaults to an
	// in-process lock.
	Locker  lock.Locker
	LockTTL time.Duration

	// Clock defaults to a sequence resumed from the store's log position.
	Clock Sequencer

	// TxIDs defaults to UUIDv7 ids.
	TxIDs engine.TxIDGenerator

	Logger *slog.Logger
}

// Runtime executes transactions against a store: it verifies signatures,
// serializes access to the state slot, runs the processor inside a store
// transaction and appends every outcome to the log.
type Runtime struct {
	store       *store.Store
	deploy      Deployment
	proc        *engine.Processor
	locker      lock.Locker
	lockTTL     time.Duration
	clock       Sequencer
	ids         engine.TxIDGenerator
	rentPerByte uint64
	logger      *slog.Logger
}

// New creates a Runtime over st and binds the database to opts.Program.
func New(ctx context.Context, st *store.Store, opts Options) (*Runtime, error) {
	if opts.Program == (common.Address{}) {
		return nil, errors.New("runtime: program id is required")
	}
	if err := bindProgram(ctx, st, opts.Program); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	clock := opts.Clock
	if clock == nil {
		seq, err := resumeSequence(ctx, st)
		if err != nil {
			return nil, fmt.Errorf("runtime: %w", err)
		}
		clock = seq
	}
	ids := opts.TxIDs
	if ids == nil {
		ids = engine.UUIDv7Generator{}
	}
	locker := opts.Locker
	if locker == nil {
		locker = lock.NewLocal()
	}

	deploy := NewDeployment(opts.Program)
	proc := engine.New(engine.Config{
		ProgramID:      deploy.Program,
		StateAddress:   deploy.State,
		CustodyAddress: deploy.Custody,
		SystemProgram:  SystemProgram,
	}, engine.WithMaxItems(opts.MaxItems), engine.WithLogger(logger))

	return &Runtime{
		store:       st,
		deploy:      deploy,
		proc:        proc,
		locker:      locker,
		lockTTL:     opts.LockTTL,
		clock:       clock,
		ids:         ids,
		rentPerByte: opts.RentPerByte,
		logger:      logger.With("component", "host"),
	}, nil
}

func bindProgram(ctx context.Context, st *store.Store, program common.Address) error {
	bound, err := st.Meta(ctx, store.MetaProgramID)
	if errors.Is(err, store.ErrNotFound) {
		return st.SetMeta(ctx, store.MetaProgramID, program.Hex())
	}
	if err != nil {
		return fmt.Errorf("runtime: %w", err)
	}
	if bound != program.Hex() {
		return fmt.Errorf("%w: database belongs to %s, not %s", ErrProgramMismatch, bound, program.Hex())
	}
	return nil
}

// Deployment returns the program's derived addresses.
func (r *Runtime) Deployment() Deployment {
	return r.deploy
}

// NewTxID returns a fresh transaction id.
func (r *Runtime) NewTxID() string {
	return r.ids.Generate()
}

// Receipt describes a logged transaction.
type Receipt struct {
	TxID      string
	Seq       int64
	Kind      string
	Outcome   string
	Message   string
	StateHash string
	EntryHash string

	// Effects is set for accepted instructions.
	Effects []engine.Effect
}

// OK reports whether the transaction was accepted.
func (r *Receipt) OK() bool {
	return r.Outcome == store.OutcomeOK
}

// Execute runs a signed transaction. A rejected instruction is logged and
// returned as both a receipt and the processor's error; use engine.CodeOf
// to inspect it. Any other error means nothing was logged.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	release, err := r.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()
	return r.execute(ctx, tx, r.clock.Next())
}

func (r *Runtime) acquire(ctx context.Context) (func(), error) {
	release, err := lock.Wait(ctx, r.locker, r.deploy.State.Hex(), r.lockTTL, 0)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	return release, nil
}

func (r *Runtime) execute(ctx context.Context, tx *Transaction, seq int64) (*Receipt, error) {
	if tx.ID == "" {
		return nil, errors.New("execute: transaction has no id")
	}
	if tx.Program != r.deploy.Program {
		return nil, fmt.Errorf("execute %s: %w: targets %s", tx.ID, ErrProgramMismatch, tx.Program.Hex())
	}

	payload := tx.Payload()
	signers := tx.Signers()

	var (
		res     *engine.Result
		procErr error
		receipt *Receipt
	)
	err := r.store.InTx(ctx, func(stx *store.Tx) error {
		views, err := r.loadViews(ctx, stx, tx.Accounts, signers)
		if err != nil {
			return err
		}

		res, procErr = r.proc.Process(ctx, NewLedger(stx, r.deploy.Custody, r.rentPerByte), views, tx.Data)
		if procErr != nil {
			return procErr
		}

		slot, err := stx.Account(ctx, r.deploy.State)
		if err != nil {
			return fmt.Errorf("load state slot: %w", err)
		}
		slot.Data = res.StateData
		if err := stx.PutAccount(ctx, slot); err != nil {
			return err
		}

		receipt, err = r.logEntry(ctx, stx.AppendLog, tx.ID, seq, store.KindInstruction, payload,
			store.OutcomeOK, "", ir.StateHash(res.StateData))
		return err
	})

	if procErr != nil {
		return r.logRejection(ctx, tx, seq, payload, procErr)
	}
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", tx.ID, err)
	}

	receipt.Effects = res.Effects
	r.logger.Info("transaction accepted",
		"tx_id", tx.ID,
		"seq", seq,
		"instruction", res.Instruction.Tag().String(),
	)
	return receipt, nil
}

// logRejection records a rejected instruction after its store transaction
// rolled back.
func (r *Runtime) logRejection(ctx context.Context, tx *Transaction, seq int64, payload ir.Object, procErr error) (*Receipt, error) {
	outcome := OutcomeInternal
	if code, ok := engine.CodeOf(procErr); ok {
		outcome = code.String()
	}

	stateHash, err := r.slotHash(ctx)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", tx.ID, err)
	}
	receipt, err := r.logEntry(ctx, r.store.AppendLog, tx.ID, seq, store.KindInstruction, payload,
		outcome, procErr.Error(), stateHash)
	if err != nil {
		return nil, fmt.Errorf("execute %s: %w", tx.ID, err)
	}

	r.logger.Info("transaction rejected", "tx_id", tx.ID, "seq", seq, "outcome", outcome)
	return receipt, procErr
}

func (r *Runtime) loadViews(ctx context.Context, stx *store.Tx, metas []AccountMeta, signers map[common.Address]bool) ([]*engine.Account, error) {
	views := make([]*engine.Account, len(metas))
	for i, m := range metas {
		view := &engine.Account{
			Key:        m.Key,
			IsSigner:   m.IsSigner && signers[m.Key],
			IsWritable: m.IsWritable,
		}
		acct, err := stx.Account(ctx, m.Key)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			view.Owner = acct.Owner
			view.Data = acct.Data
		}
		views[i] = view
	}
	return views, nil
}

func (r *Runtime) logEntry(
	ctx context.Context,
	appendFn func(context.Context, *store.Entry) error,
	txID string,
	seq int64,
	kind string,
	payload ir.Object,
	outcome, message, stateHash string,
) (*Receipt, error) {
	body, err := ir.MarshalCanonical(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	entryHash, err := ir.EntryHash(txID, seq, payload, outcome, stateHash)
	if err != nil {
		return nil, err
	}

	entry := &store.Entry{
		Seq:           seq,
		TxID:          txID,
		Kind:          kind,
		Program:       r.deploy.Program,
		Payload:       string(body),
		Outcome:       outcome,
		Message:       message,
		StateHash:     stateHash,
		EntryHash:     entryHash,
		EngineVersion: ir.EngineVersion,
		FormatVersion: ir.FormatVersion,
	}
	if err := appendFn(ctx, entry); err != nil {
		return nil, err
	}
	return &Receipt{
		TxID:      txID,
		Seq:       seq,
		Kind:      kind,
		Outcome:   outcome,
		Message:   message,
		StateHash: stateHash,
		EntryHash: entryHash,
	}, nil
}

func (r *Runtime) slotHash(ctx context.Context) (string, error) {
	slot, err := r.store.Account(ctx, r.deploy.State)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ir.StateHash(slot.Data), nil
}

// State decodes the registry from the state slot. Returns
// market.ErrUninitialized before InitState.
func (r *Runtime) State(ctx context.Context) (*market.State, error) {
	slot, err := r.store.Account(ctx, r.deploy.State)
	if errors.Is(err, store.ErrNotFound) {
		return nil, market.ErrUninitialized
	}
	if err != nil {
		return nil, err
	}
	return market.Decode(slot.Data)
}

// StateData returns the raw registry bytes, or nil before InitState.
func (r *Runtime) StateData(ctx context.Context) ([]byte, error) {
	slot, err := r.store.Account(ctx, r.deploy.State)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return slot.Data, nil
}

// Balance returns addr's balance; unknown accounts hold zero.
func (r *Runtime) Balance(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	a, err := r.store.Account(ctx, addr)
	if errors.Is(err, store.ErrNotFound) {
		return new(uint256.Int), nil
	}
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Set(&a.Balance), nil
}

// Holdings lists the assets held by addr.
func (r *Runtime) Holdings(ctx context.Context, addr common.Address) ([]store.Asset, error) {
	return r.store.Holdings(ctx, addr)
}
