package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/holiman/uint256"
	"gopkg.in/yaml.v3"

	"github.com/tungla20/Solana-MKP/internal/engine"
	"github.com/tungla20/Solana-MKP/internal/host"
	"github.com/tungla20/Solana-MKP/internal/market"
)

// Scenario is a scripted run against a fresh marketplace.
// Names in a scenario ("alice", "sword") resolve to deterministic test
// addresses; 0x-prefixed hex is used as-is.
type Scenario struct {
	// Name uniquely identifies this scenario and its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program names the marketplace program. Defaults to "market".
	Program string `yaml:"program,omitempty"`

	// MaxItems caps the registry. Zero uses the market default.
	MaxItems int `yaml:"max_items,omitempty"`

	// RentPerByte prices account space. Defaults to 1.
	RentPerByte *uint64 `yaml:"rent_per_byte,omitempty"`

	// Setup establishes balances, assets and listings. Every setup step
	// must be accepted and none of them are traced.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow is the traced part of the scenario.
	Flow []Step `yaml:"flow"`

	// Assertions are checked after the flow.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action. Exactly one action field must be set.
type Step struct {
	Airdrop          *AirdropStep     `yaml:"airdrop,omitempty"`
	Mint             *MintStep        `yaml:"mint,omitempty"`
	InitState        *InitStateStep   `yaml:"init_state,omitempty"`
	CreateMarketItem *ListingStep     `yaml:"create_market_item,omitempty"`
	PurchaseSale     *PurchaseStep    `yaml:"purchase_sale,omitempty"`
	Gacha            *GachaStep       `yaml:"gacha,omitempty"`
	CreateGacha      *CreateGachaStep `yaml:"create_gacha,omitempty"`

	// SignAs replaces the default signer, which is the step's acting
	// account (authority, seller, buyer or caller).
	SignAs string `yaml:"sign_as,omitempty"`

	// Unsigned submits the transaction without any signature.
	Unsigned bool `yaml:"unsigned,omitempty"`

	// Expect is the expected outcome: "ok" (the default) or an error code
	// name such as "ItemAlreadySold".
	Expect string `yaml:"expect,omitempty"`
}

type AirdropStep struct {
	To     string `yaml:"to"`
	Amount Amount `yaml:"amount"`
}

type MintStep struct {
	Program string `yaml:"program"`
	Asset   string `yaml:"asset"`
	Holder  string `yaml:"holder"`
}

type InitStateStep struct {
	Authority    string `yaml:"authority"`
	ListingPrice Amount `yaml:"listing_price"`
}

type ListingStep struct {
	Seller          string `yaml:"seller"`
	AssetProgram    string `yaml:"asset_program"`
	Asset           string `yaml:"asset"`
	Price           Amount `yaml:"price"`
	FileName        string `yaml:"file_name"`
	Description     string `yaml:"description,omitempty"`
	CashBackPercent uint8  `yaml:"cash_back_percent,omitempty"`
}

type PurchaseStep struct {
	Buyer string `yaml:"buyer"`
	Item  uint64 `yaml:"item"`

	// Price overrides the listed price the buyer asserts.
	Price *Amount `yaml:"price,omitempty"`
}

type GachaStep struct {
	Caller       string `yaml:"caller"`
	AssetProgram string `yaml:"asset_program"`
	Qty          uint8  `yaml:"qty"`
	Price        Amount `yaml:"price"`
	Fee          Amount `yaml:"fee"`
}

type CreateGachaStep struct {
	Caller       string `yaml:"caller"`
	AssetProgram string `yaml:"asset_program"`
	Qty          uint8  `yaml:"qty"`
}

// Step action names, as they appear in traces.
const (
	ActionAirdrop          = "airdrop"
	ActionMint             = "mint"
	ActionInitState        = "init_state"
	ActionCreateMarketItem = "create_market_item"
	ActionPurchaseSale     = "purchase_sale"
	ActionGacha            = "gacha"
	ActionCreateGacha      = "create_gacha"
)

// Action names the step's action, or "" when none or several are set.
func (s *Step) Action() string {
	var names []string
	if s.Airdrop != nil {
		names = append(names, ActionAirdrop)
	}
	if s.Mint != nil {
		names = append(names, ActionMint)
	}
	if s.InitState != nil {
		names = append(names, ActionInitState)
	}
	if s.CreateMarketItem != nil {
		names = append(names, ActionCreateMarketItem)
	}
	if s.PurchaseSale != nil {
		names = append(names, ActionPurchaseSale)
	}
	if s.Gacha != nil {
		names = append(names, ActionGacha)
	}
	if s.CreateGacha != nil {
		names = append(names, ActionCreateGacha)
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// Amount is a native-value amount written as an integer or a decimal
// string.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount of n.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Int returns the amount.
func (a *Amount) Int() *uint256.Int {
	return &a.v
}

// UnmarshalYAML accepts any scalar that parses as a u128 amount.
func (a *Amount) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: amount must be a scalar", node.Line)
	}
	v, err := market.ParseAmount(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	a.v.Set(v)
	return nil
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarioDir loads every *.yaml file in dir, sorted by file name.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for i := range s.Setup {
		if err := validateStep(&s.Setup[i]); err != nil {
			return fmt.Errorf("setup[%d]: %w", i, err)
		}
		if s.Setup[i].Expect != "" && s.Setup[i].Expect != OutcomeOK {
			return fmt.Errorf("setup[%d]: setup steps must succeed", i)
		}
	}
	for i := range s.Flow {
		if err := validateStep(&s.Flow[i]); err != nil {
			return fmt.Errorf("flow[%d]: %w", i, err)
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Step) error {
	action := s.Action()
	if action == "" {
		return fmt.Errorf("exactly one action is required")
	}
	if s.Unsigned && s.SignAs != "" {
		return fmt.Errorf("unsigned and sign_as are mutually exclusive")
	}
	if (action == ActionAirdrop || action == ActionMint) && (s.Unsigned || s.SignAs != "") {
		return fmt.Errorf("%s is not a signed transaction", action)
	}
	if s.Expect != "" && s.Expect != OutcomeOK && s.Expect != host.OutcomeInternal {
		if _, ok := engine.ParseErrorCode(s.Expect); !ok {
			return fmt.Errorf("unknown expected outcome %q", s.Expect)
		}
	}

	var required []string
	switch action {
	case ActionAirdrop:
		required = []string{s.Airdrop.To}
	case ActionMint:
		required = []string{s.Mint.Program, s.Mint.Asset, s.Mint.Holder}
	case ActionInitState:
		required = []string{s.InitState.Authority}
	case ActionCreateMarketItem:
		required = []string{s.CreateMarketItem.Seller, s.CreateMarketItem.AssetProgram, s.CreateMarketItem.Asset}
	case ActionPurchaseSale:
		required = []string{s.PurchaseSale.Buyer}
	case ActionGacha:
		required = []string{s.Gacha.Caller, s.Gacha.AssetProgram}
	case ActionCreateGacha:
		required = []string{s.CreateGacha.Caller, s.CreateGacha.AssetProgram}
	}
	for _, r := range required {
		if r == "" {
			return fmt.Errorf("%s: missing account name", action)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertBalance:
		if a.Account == "" || a.Equals == nil {
			return fmt.Errorf("assertions[%d]: account and equals are required for balance", index)
		}
	case AssertHolder:
		if a.Program == "" || a.Asset == "" || a.Holder == "" {
			return fmt.Errorf("assertions[%d]: program, asset and holder are required for holder", index)
		}
	case AssertItem:
		if a.Item == 0 {
			return fmt.Errorf("assertions[%d]: item id is required for item", index)
		}
	case AssertRegistry:
		if a.ItemCount == nil && a.SoldCount == nil {
			return fmt.Errorf("assertions[%d]: item_count or sold_count is required for registry", index)
		}
	case AssertTraceCount:
		if a.Action == "" && a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: action or outcome is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
	case AssertReplay:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
