package harness

import (
	"github.com/tungla20/Solana-MKP/internal/ir"
	"github.com/tungla20/Solana-MKP/internal/store"
)

// OutcomeOK is the outcome of an accepted step.
const OutcomeOK = store.OutcomeOK

// TraceEvent records one flow step. Addresses in Effects are rendered as
// scenario names so traces are stable across key derivations.
type TraceEvent struct {
	Step    int
	Seq     int64
	TxID    string
	Action  string
	Outcome string
	Effects ir.Array
}

func (e TraceEvent) canonical() ir.Object {
	effects := e.Effects
	if effects == nil {
		effects = ir.Array{}
	}
	return ir.Object{
		"step":    ir.Int(int64(e.Step)),
		"seq":     ir.Int(e.Seq),
		"tx_id":   ir.String(e.TxID),
		"action":  ir.String(e.Action),
		"outcome": ir.String(e.Outcome),
		"effects": effects,
	}
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every step matched its expected outcome and every
	// assertion held.
	Pass bool

	// Trace contains the flow steps in order.
	Trace []TraceEvent

	// Errors contains failed expectations. Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
