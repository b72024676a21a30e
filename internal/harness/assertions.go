package harness

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tungla20/Solana-MKP/internal/host"
	"github.com/tungla20/Solana-MKP/internal/store"
	"github.com/tungla20/Solana-MKP/internal/testutil"
)

// Assertion validates the trace or the final ledger.
type Assertion struct {
	// Type specifies the assertion type:
	//   - "balance": account holds exactly equals
	//   - "holder": asset is held by holder
	//   - "item": registry item fields (owner, sold, gacha)
	//   - "registry": item_count and sold_count
	//   - "trace_count": steps matching action and/or outcome
	//   - "trace_order": actions appear in order
	//   - "replay": the log re-executes identically on a fresh store
	Type string `yaml:"type"`

	Account string  `yaml:"account,omitempty"`
	Equals  *Amount `yaml:"equals,omitempty"`

	Program string `yaml:"program,omitempty"`
	Asset   string `yaml:"asset,omitempty"`
	Holder  string `yaml:"holder,omitempty"`

	Item  uint64 `yaml:"item,omitempty"`
	Owner string `yaml:"owner,omitempty"`
	Sold  *bool  `yaml:"sold,omitempty"`
	Gacha *bool  `yaml:"gacha,omitempty"`

	ItemCount *uint64 `yaml:"item_count,omitempty"`
	SoldCount *uint64 `yaml:"sold_count,omitempty"`

	Action  string   `yaml:"action,omitempty"`
	Outcome string   `yaml:"outcome,omitempty"`
	Count   int      `yaml:"count,omitempty"`
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertBalance    = "balance"
	AssertHolder     = "holder"
	AssertItem       = "item"
	AssertRegistry   = "registry"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
	AssertReplay     = "replay"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] seq=%d %s -> %s\n", event.Step, event.Seq, event.Action, event.Outcome)
		}
	}
	return buf.String()
}

// AssertionContext gives assertions access to the scenario's ledger.
type AssertionContext struct {
	Ctx     context.Context
	Store   *store.Store
	Runtime *host.Runtime

	names *names
	opts  host.Options
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// Ledger assertions need actx; trace assertions work without it.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertBalance, AssertHolder, AssertItem, AssertRegistry, AssertReplay:
			if actx == nil || actx.Runtime == nil {
				err = fmt.Errorf("assertion[%d]: %s requires a ledger context", i, assertion.Type)
				break
			}
			err = actx.evaluate(assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (a *AssertionContext) ctx() context.Context {
	if a.Ctx == nil {
		return context.Background()
	}
	return a.Ctx
}

func (a *AssertionContext) resolver() *names {
	if a.names == nil {
		a.names = newNames()
	}
	return a.names
}

func (a *AssertionContext) evaluate(as Assertion) error {
	switch as.Type {
	case AssertBalance:
		return a.assertBalance(as)
	case AssertHolder:
		return a.assertHolder(as)
	case AssertItem:
		return a.assertItem(as)
	case AssertRegistry:
		return a.assertRegistry(as)
	case AssertReplay:
		return a.assertReplay()
	}
	return fmt.Errorf("unknown assertion type %q", as.Type)
}

func (a *AssertionContext) assertBalance(as Assertion) error {
	got, err := a.Runtime.Balance(a.ctx(), a.resolver().addr(as.Account))
	if err != nil {
		return err
	}
	if !got.Eq(as.Equals.Int()) {
		return &AssertionError{
			Type:     AssertBalance,
			Expected: fmt.Sprintf("%s holds %s", as.Account, as.Equals.Int().Dec()),
			Actual:   got.Dec(),
		}
	}
	return nil
}

func (a *AssertionContext) assertHolder(as Assertion) error {
	n := a.resolver()
	asset, err := a.Store.Asset(a.ctx(), n.addr(as.Program), n.addr(as.Asset))
	if errors.Is(err, store.ErrNotFound) {
		return &AssertionError{
			Type:     AssertHolder,
			Expected: fmt.Sprintf("%s/%s held by %s", as.Program, as.Asset, as.Holder),
			Actual:   "asset does not exist",
		}
	}
	if err != nil {
		return err
	}
	if got := n.name(asset.Holder); got != as.Holder {
		return &AssertionError{
			Type:     AssertHolder,
			Expected: fmt.Sprintf("%s/%s held by %s", as.Program, as.Asset, as.Holder),
			Actual:   "held by " + got,
		}
	}
	return nil
}

func (a *AssertionContext) assertItem(as Assertion) error {
	st, err := a.Runtime.State(a.ctx())
	if err != nil {
		return err
	}
	item, ok := st.Item(as.Item)
	if !ok {
		return &AssertionError{
			Type:     AssertItem,
			Expected: fmt.Sprintf("item %d", as.Item),
			Actual:   fmt.Sprintf("registry has %d items", st.ItemCount),
		}
	}

	var mismatches []string
	if as.Owner != "" {
		got := "none"
		if item.Owner != nil {
			got = a.resolver().name(*item.Owner)
		}
		if got != as.Owner {
			mismatches = append(mismatches, fmt.Sprintf("owner %s, want %s", got, as.Owner))
		}
	}
	if as.Sold != nil && item.Sold != *as.Sold {
		mismatches = append(mismatches, fmt.Sprintf("sold %t, want %t", item.Sold, *as.Sold))
	}
	if as.Gacha != nil && item.Gacha != *as.Gacha {
		mismatches = append(mismatches, fmt.Sprintf("gacha %t, want %t", item.Gacha, *as.Gacha))
	}
	if len(mismatches) > 0 {
		return &AssertionError{
			Type:     AssertItem,
			Expected: fmt.Sprintf("item %d fields", as.Item),
			Actual:   strings.Join(mismatches, "; "),
		}
	}
	return nil
}

func (a *AssertionContext) assertRegistry(as Assertion) error {
	st, err := a.Runtime.State(a.ctx())
	if err != nil {
		return err
	}
	if as.ItemCount != nil && st.ItemCount != *as.ItemCount {
		return &AssertionError{
			Type:     AssertRegistry,
			Expected: fmt.Sprintf("item_count %d", *as.ItemCount),
			Actual:   fmt.Sprintf("item_count %d", st.ItemCount),
		}
	}
	if as.SoldCount != nil && st.SoldCount != *as.SoldCount {
		return &AssertionError{
			Type:     AssertRegistry,
			Expected: fmt.Sprintf("sold_count %d", *as.SoldCount),
			Actual:   fmt.Sprintf("sold_count %d", st.SoldCount),
		}
	}
	return nil
}

// assertReplay re-executes the whole log against a fresh store.
func (a *AssertionContext) assertReplay() error {
	ctx := a.ctx()
	entries, err := a.Store.ReadLog(ctx)
	if err != nil {
		return err
	}

	fresh, err := store.Open(":memory:")
	if err != nil {
		return err
	}
	defer fresh.Close()

	opts := a.opts
	opts.Clock = testutil.NewDeterministicClock()
	opts.TxIDs = testutil.NewSequentialTxIDs("replay")
	rt, err := host.New(ctx, fresh, opts)
	if err != nil {
		return err
	}

	report, err := host.Replay(ctx, entries, rt)
	if err != nil {
		return err
	}
	if !report.OK() {
		lines := make([]string, len(report.Mismatches))
		for i, m := range report.Mismatches {
			lines[i] = m.String()
		}
		return &AssertionError{
			Type:     AssertReplay,
			Expected: fmt.Sprintf("%d entries reproduce", report.Entries),
			Actual:   strings.Join(lines, "; "),
		}
	}
	return nil
}

// assertTraceCount checks that exactly Count steps match Action and
// Outcome. An empty field matches anything.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if assertion.Action != "" && event.Action != assertion.Action {
			continue
		}
		if assertion.Outcome != "" && event.Outcome != assertion.Outcome {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d steps matching %s", assertion.Count, describeMatch(assertion)),
			Actual:   fmt.Sprintf("%d steps", count),
			Trace:    trace,
		}
	}
	return nil
}

func describeMatch(a Assertion) string {
	var parts []string
	if a.Action != "" {
		parts = append(parts, "action="+a.Action)
	}
	if a.Outcome != "" {
		parts = append(parts, "outcome="+a.Outcome)
	}
	return strings.Join(parts, " ")
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(assertion.Actions) && event.Action == assertion.Actions[next] {
			next++
		}
	}
	if next == len(assertion.Actions) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
		Actual:   fmt.Sprintf("missing %s after position %d", assertion.Actions[next], next),
		Trace:    trace,
	}
}
