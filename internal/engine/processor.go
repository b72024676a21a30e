package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tungla20/Solana-MKP/internal/instruction"
	"github.com/tungla20/Solana-MKP/internal/market"
)

// Account is the processor's view of one account passed with an instruction.
type Account struct {
	Key        common.Address
	IsSigner   bool
	IsWritable bool

	// Owner is the program that owns Data. Zero for plain accounts.
	Owner common.Address

	// Data is the account payload. For the state slot the processor replaces
	// it with the re-encoded registry after a successful instruction.
	Data []byte
}

// Config fixes the addresses a processor validates account lists against.
type Config struct {
	ProgramID      common.Address
	StateAddress   common.Address
	CustodyAddress common.Address
	SystemProgram  common.Address
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the processor's logger. Defaults to a discard handler.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = l.With("component", "engine")
	}
}

// WithMaxItems caps the number of listings the registry accepts.
// Values below 1 leave the default in place.
func WithMaxItems(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.maxItems = n
		}
	}
}

// Processor validates instructions against the registry and applies their
// effects through host capabilities.
//
// Processor holds no mutable state. Callers must serialize Process calls
// that share a state slot; the host does this with a slot lock.
type Processor struct {
	cfg      Config
	maxItems int
	logger   *slog.Logger
}

// New creates a Processor bound to one program deployment.
func New(cfg Config, opts ...Option) *Processor {
	p := &Processor{
		cfg:      cfg,
		maxItems: market.DefaultMaxItems,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Config returns the addresses the processor validates against.
func (p *Processor) Config() Config {
	return p.cfg
}

// Result describes an accepted instruction.
type Result struct {
	Instruction instruction.Instruction

	// Effects are the capability calls that were applied, in order.
	Effects []Effect

	// State is the registry after the instruction.
	State *market.State

	// StateData is the canonical encoding written into the state slot.
	StateData []byte
}

// Process decodes data, runs the matching handler, applies the resulting
// effects in order and writes the updated registry into accounts[1].Data.
//
// On any error the slot data is left untouched. Effects applied before a
// failing capability call are not undone here; the host rolls them back.
func (p *Processor) Process(ctx context.Context, caps Capabilities, accounts []*Account, data []byte) (*Result, error) {
	ins, err := instruction.Decode(data)
	if err != nil {
		return nil, rejectWrap(InvalidInstructionData, err, "decode")
	}
	name := ins.Tag().String()

	var (
		st      *market.State
		effects []Effect
	)
	switch v := ins.(type) {
	case *instruction.InitState:
		st, effects, err = p.initState(accounts, v)
	case *instruction.CreateMarketItem:
		st, effects, err = p.createMarketItem(accounts, v)
	case *instruction.PurchaseSale:
		st, effects, err = p.purchaseSale(accounts, v)
	case *instruction.Gacha:
		st, effects, err = p.gacha(accounts, v)
	case *instruction.CreateGacha:
		st, effects, err = p.createGacha(accounts, v)
	default:
		err = reject(InvalidInstructionData, "unhandled instruction %s", name)
	}
	if err != nil {
		return nil, p.rejected(name, err)
	}

	for i, e := range effects {
		if err := e.apply(ctx, caps); err != nil {
			return nil, p.rejected(name, rejectWrap(TransferError, err, "effect %d (%s)", i, e.Kind()))
		}
	}

	if err := st.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	encoded, err := market.Encode(st)
	if err != nil {
		return nil, fmt.Errorf("%s: encode registry: %w", name, err)
	}
	accounts[1].Data = encoded

	p.logger.Info("instruction applied",
		"instruction", name,
		"effects", len(effects),
		"item_count", st.ItemCount,
		"sold_count", st.SoldCount,
	)

	return &Result{
		Instruction: ins,
		Effects:     effects,
		State:       st,
		StateData:   encoded,
	}, nil
}

func (p *Processor) rejected(name string, err error) error {
	var pe *ProcessError
	if errors.As(err, &pe) && pe.Instruction == "" {
		pe.Instruction = name
	}
	p.logger.Debug("instruction rejected", "instruction", name, "error", err)
	return err
}

// expectAccounts checks the account list length.
func expectAccounts(accounts []*Account, n int) error {
	if len(accounts) < n {
		return reject(NotEnoughAccountKeys, "need %d accounts, got %d", n, len(accounts))
	}
	if len(accounts) > n {
		return reject(InvalidAccount, "expected %d accounts, got %d", n, len(accounts))
	}
	for i, a := range accounts {
		if a == nil {
			return reject(InvalidAccount, "account %d is nil", i)
		}
	}
	return nil
}

func requireSigner(a *Account, role string) error {
	if !a.IsSigner {
		return reject(MissingRequiredSignature, "%s %s did not sign", role, a.Key.Hex())
	}
	return nil
}

func requireKey(a *Account, want common.Address, role string) error {
	if a.Key != want {
		return reject(InvalidAccount, "%s account is %s, want %s", role, a.Key.Hex(), want.Hex())
	}
	return nil
}

// loadState validates the state slot and decodes the registry. An empty or
// bootstrapped-but-uninitialized slot fails with uninit.
func (p *Processor) loadState(a *Account, uninit ErrorCode) (*market.State, error) {
	if a.Key != p.cfg.StateAddress {
		return nil, reject(InvalidStateAccount, "state account %s does not match %s", a.Key.Hex(), p.cfg.StateAddress.Hex())
	}
	if !a.IsWritable {
		return nil, reject(InvalidStateAccount, "state account is not writable")
	}
	if len(a.Data) == 0 {
		return nil, reject(uninit, "registry not initialized")
	}
	if a.Owner != p.cfg.ProgramID {
		return nil, reject(InvalidStateAccount, "state account owned by %s", a.Owner.Hex())
	}

	st, err := market.Decode(a.Data)
	if errors.Is(err, market.ErrUninitialized) {
		return nil, reject(uninit, "registry not initialized")
	}
	if err != nil {
		return nil, rejectWrap(InvalidStateAccount, err, "decode registry")
	}
	if !st.Initialized {
		return nil, reject(uninit, "registry not initialized")
	}
	return st, nil
}
