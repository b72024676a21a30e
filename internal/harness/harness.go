package harness

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tungla20/Solana-MKP/internal/engine"
	"github.com/tungla20/Solana-MKP/internal/host"
	"github.com/tungla20/Solana-MKP/internal/ir"
	"github.com/tungla20/Solana-MKP/internal/store"
	"github.com/tungla20/Solana-MKP/internal/testutil"
)

// DefaultProgram names the program when a scenario does not.
const DefaultProgram = "market"

// Harness runs one scenario against its own runtime.
type Harness struct {
	ctx    context.Context
	store  *store.Store
	rt     *host.Runtime
	opts   host.Options
	names  *names
	result *Result
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a deterministic
// clock and sequential transaction ids, so two runs of the same scenario
// produce identical traces.
//
// A step whose outcome differs from its expectation, or a failed
// assertion, fails the result. An error is returned only when the scenario
// cannot be executed at all: the store fails, a setup step is rejected, or
// a step cannot be built.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create test database: %w", err)
	}
	defer st.Close()

	h, err := newHarness(ctx, st, scenario)
	if err != nil {
		return nil, err
	}

	for i := range scenario.Setup {
		step := &scenario.Setup[i]
		ev, err := h.execute(step)
		if err != nil {
			return nil, fmt.Errorf("setup[%d] (%s): %w", i, step.Action(), err)
		}
		if ev.Outcome != OutcomeOK {
			return nil, fmt.Errorf("setup[%d] (%s): rejected with %s", i, step.Action(), ev.Outcome)
		}
	}

	for i := range scenario.Flow {
		step := &scenario.Flow[i]
		ev, err := h.execute(step)
		if err != nil {
			return nil, fmt.Errorf("flow[%d] (%s): %w", i, step.Action(), err)
		}
		ev.Step = i + 1
		h.result.Trace = append(h.result.Trace, ev)

		want := step.Expect
		if want == "" {
			want = OutcomeOK
		}
		if ev.Outcome != want {
			h.result.AddError(fmt.Sprintf("flow[%d] (%s): expected outcome %s, got %s", i, ev.Action, want, ev.Outcome))
		}
	}

	actx := &AssertionContext{Ctx: ctx, Store: h.store, Runtime: h.rt, names: h.names, opts: h.opts}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func newHarness(ctx context.Context, st *store.Store, scenario *Scenario) (*Harness, error) {
	programName := scenario.Program
	if programName == "" {
		programName = DefaultProgram
	}
	rent := uint64(1)
	if scenario.RentPerByte != nil {
		rent = *scenario.RentPerByte
	}

	opts := host.Options{
		Program:     testutil.Addr(programName),
		MaxItems:    scenario.MaxItems,
		RentPerByte: rent,
		Clock:       testutil.NewDeterministicClock(),
		TxIDs:       testutil.NewSequentialTxIDs("tx"),
	}
	rt, err := host.New(ctx, st, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}

	n := newNames()
	d := rt.Deployment()
	n.bind(programName, d.Program)
	n.bind("state", d.State)
	n.bind("custody", d.Custody)
	n.bind("system", host.SystemProgram)

	return &Harness{
		ctx:    ctx,
		store:  st,
		rt:     rt,
		opts:   opts,
		names:  n,
		result: NewResult(),
	}, nil
}

// execute runs one step. Rejections are reported through the event's
// outcome; an error means nothing was logged.
func (h *Harness) execute(s *Step) (TraceEvent, error) {
	ev := TraceEvent{Action: s.Action()}

	var (
		receipt *host.Receipt
		err     error
	)
	switch ev.Action {
	case ActionAirdrop:
		receipt, err = h.rt.Airdrop(h.ctx, h.names.addr(s.Airdrop.To), s.Airdrop.Amount.Int())
	case ActionMint:
		m := s.Mint
		receipt, err = h.rt.MintAsset(h.ctx, h.names.addr(m.Program), h.names.addr(m.Asset), h.names.addr(m.Holder))
	default:
		receipt, err = h.transact(s)
	}
	if err != nil {
		return ev, err
	}

	ev.Seq = receipt.Seq
	ev.TxID = receipt.TxID
	ev.Outcome = receipt.Outcome
	ev.Effects = h.names.describe(receipt.Effects)
	return ev, nil
}

func (h *Harness) transact(s *Step) (*host.Receipt, error) {
	call, actor, err := h.build(s)
	if err != nil {
		return nil, err
	}
	tx, err := call.Transaction(h.rt.NewTxID(), h.rt.Deployment().Program)
	if err != nil {
		return nil, err
	}

	if !s.Unsigned {
		signer := actor
		if s.SignAs != "" {
			signer = s.SignAs
		}
		if common.IsHexAddress(signer) {
			return nil, fmt.Errorf("cannot sign as raw address %s", signer)
		}
		if err := tx.Sign(testutil.Key(signer)); err != nil {
			return nil, err
		}
	}

	receipt, err := h.rt.Execute(h.ctx, tx)
	if receipt != nil {
		return receipt, nil
	}
	return nil, err
}

// build returns the call for a transaction step and the name of the
// account expected to sign it.
func (h *Harness) build(s *Step) (host.Call, string, error) {
	d := h.rt.Deployment()
	n := h.names

	switch {
	case s.InitState != nil:
		a := s.InitState
		return d.InitState(n.addr(a.Authority), a.ListingPrice.Int()), a.Authority, nil

	case s.CreateMarketItem != nil:
		a := s.CreateMarketItem
		return d.CreateMarketItem(n.addr(a.Seller), host.Listing{
			AssetProgram:    n.addr(a.AssetProgram),
			AssetID:         n.addr(a.Asset),
			Price:           a.Price.Int(),
			FileName:        a.FileName,
			Description:     a.Description,
			CashBackPercent: a.CashBackPercent,
		}), a.Seller, nil
	}

	st, err := h.rt.State(h.ctx)
	if err != nil {
		return host.Call{}, "", err
	}

	switch {
	case s.PurchaseSale != nil:
		a := s.PurchaseSale
		var call host.Call
		if a.Price != nil {
			call, err = d.PurchaseSaleAt(st, n.addr(a.Buyer), a.Item, a.Price.Int())
		} else {
			call, err = d.PurchaseSale(st, n.addr(a.Buyer), a.Item)
		}
		return call, a.Buyer, err

	case s.Gacha != nil:
		a := s.Gacha
		return d.Gacha(st, n.addr(a.Caller), n.addr(a.AssetProgram), a.Qty, a.Price.Int(), a.Fee.Int()), a.Caller, nil

	case s.CreateGacha != nil:
		a := s.CreateGacha
		return d.CreateGacha(st, n.addr(a.Caller), n.addr(a.AssetProgram), a.Qty), a.Caller, nil
	}
	return host.Call{}, "", fmt.Errorf("unsupported step %q", s.Action())
}

// names maps scenario names to addresses and back.
type names struct {
	byName map[string]common.Address
	byAddr map[common.Address]string
}

func newNames() *names {
	return &names{
		byName: make(map[string]common.Address),
		byAddr: make(map[common.Address]string),
	}
}

func (n *names) bind(name string, a common.Address) {
	n.byName[name] = a
	n.byAddr[a] = name
}

// addr resolves a name, deriving and remembering a test address the first
// time it is seen.
func (n *names) addr(name string) common.Address {
	if common.IsHexAddress(name) {
		return common.HexToAddress(name)
	}
	if a, ok := n.byName[name]; ok {
		return a
	}
	a := testutil.Addr(name)
	n.bind(name, a)
	return a
}

func (n *names) name(a common.Address) string {
	if name, ok := n.byAddr[a]; ok {
		return name
	}
	return a.Hex()
}

// describe renders effects with every known address replaced by its name.
func (n *names) describe(effects []engine.Effect) ir.Array {
	out := engine.DescribeEffects(effects)
	for _, v := range out {
		obj := v.(ir.Object)
		for k, field := range obj {
			s, ok := field.(ir.String)
			if !ok || !common.IsHexAddress(string(s)) {
				continue
			}
			obj[k] = ir.String(n.name(common.HexToAddress(string(s))))
		}
	}
	return out
}
