// Package catalog loads bulk listings written in CUE.
//
// A catalog names each listing under the top-level listing struct:
//
//	asset_program: "0x00000000000000000000000000000000000000aa"
//	listing: sword: {
//		asset:             "0x0000000000000000000000000000000000000001"
//		price:             5
//		file_name:         "sword.png"
//		cash_back_percent: 10
//	}
//
// Files are unified with an embedded schema before compilation, so type and
// range errors carry CUE positions.
package catalog

import (
	_ "embed"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/tungla20/Solana-MKP/internal/market"
)

//go:embed schema.cue
var schemaSource string

// Listing is one compiled catalog entry.
type Listing struct {
	Name            string
	AssetProgram    common.Address
	AssetID         common.Address
	Price           uint256.Int
	FileName        string
	Description     string
	CashBackPercent uint8
}

// CompileError reports a problem at a catalog field.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Compile turns a catalog value into listings sorted by name. The value is
// unified with the schema first.
func Compile(v cue.Value) ([]Listing, error) {
	schema := v.Context().CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("catalog schema: %w", err)
	}
	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var defaultProgram common.Address
	if p := v.LookupPath(cue.ParsePath("asset_program")); p.Exists() {
		s, err := p.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		defaultProgram = common.HexToAddress(s)
	}

	listings := v.LookupPath(cue.ParsePath("listing"))
	if !listings.Exists() {
		return nil, &CompileError{Field: "listing", Message: "at least one listing is required", Pos: v.Pos()}
	}
	iter, err := listings.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var out []Listing
	for iter.Next() {
		l, err := compileListing(iter.Selector().Unquoted(), iter.Value(), defaultProgram)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if len(out) == 0 {
		return nil, &CompileError{Field: "listing", Message: "at least one listing is required", Pos: listings.Pos()}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func compileListing(name string, v cue.Value, defaultProgram common.Address) (Listing, error) {
	l := Listing{Name: name, AssetProgram: defaultProgram}
	field := func(f string) string { return "listing." + name + "." + f }

	str := func(f string) (string, error) {
		s, err := v.LookupPath(cue.ParsePath(f)).String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	}

	asset, err := str("asset")
	if err != nil {
		return l, err
	}
	l.AssetID = common.HexToAddress(asset)

	if p := v.LookupPath(cue.ParsePath("asset_program")); p.Exists() {
		s, err := p.String()
		if err != nil {
			return l, formatCUEError(err)
		}
		l.AssetProgram = common.HexToAddress(s)
	}
	if l.AssetProgram == (common.Address{}) {
		return l, &CompileError{Field: field("asset_program"), Message: "asset_program is required here or at the top level", Pos: v.Pos()}
	}

	priceVal := v.LookupPath(cue.ParsePath("price"))
	price, err := parsePrice(priceVal)
	if err != nil {
		return l, &CompileError{Field: field("price"), Message: err.Error(), Pos: priceVal.Pos()}
	}
	l.Price.Set(price)

	if l.FileName, err = str("file_name"); err != nil {
		return l, err
	}
	if l.Description, err = str("description"); err != nil {
		return l, err
	}

	cb, err := v.LookupPath(cue.ParsePath("cash_back_percent")).Int64()
	if err != nil {
		return l, formatCUEError(err)
	}
	l.CashBackPercent = uint8(cb)
	return l, nil
}

// parsePrice accepts an integer or a decimal string, since prices may exceed
// what CUE files comfortably spell as numbers.
func parsePrice(v cue.Value) (*uint256.Int, error) {
	var b *big.Int
	switch v.Kind() {
	case cue.IntKind:
		n, err := v.Int(nil)
		if err != nil {
			return nil, err
		}
		b = n
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return nil, err
		}
		return market.ParseAmount(s)
	default:
		return nil, fmt.Errorf("price must be an integer or decimal string, got %v", v.Kind())
	}
	if b.Sign() <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}
	u, overflow := uint256.FromBig(b)
	if overflow || !market.FitsU128(u) {
		return nil, fmt.Errorf("price %s exceeds 128 bits", b.String())
	}
	return u, nil
}

// formatCUEError keeps the first error and its position.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	ce := &CompileError{Field: "cue", Message: first.Error()}
	if path := first.Path(); len(path) > 0 {
		ce.Field = strings.Join(path, ".")
	}
	if positions := errors.Positions(first); len(positions) > 0 {
		ce.Pos = positions[0]
	}
	return ce
}
