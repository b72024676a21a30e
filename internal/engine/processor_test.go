package engine

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tungla20/Solana-MKP/internal/instruction"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/sampler"
	"github.com/tungla20/Solana-MKP/internal/testutil"
)

var nft = testutil.Addr("nft-program")

type fixture struct {
	t      *testing.T
	cfg    Config
	proc   *Processor
	ledger *testutil.FakeLedger
	slot   *Account
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cfg := Config{
		ProgramID:      testutil.Addr("program"),
		StateAddress:   testutil.Addr("state"),
		CustodyAddress: testutil.Addr("custody"),
	}
	ledger := testutil.NewFakeLedger(cfg.CustodyAddress)
	ledger.RentPerByte = 1
	ledger.Fund(testutil.Addr("admin"), 10_000)

	return &fixture{
		t:      t,
		cfg:    cfg,
		proc:   New(cfg, opts...),
		ledger: ledger,
		slot:   &Account{Key: cfg.StateAddress, IsWritable: true},
	}
}

func signer(name string) *Account {
	return &Account{Key: testutil.Addr(name), IsSigner: true, IsWritable: true}
}

func account(addr common.Address) *Account {
	return &Account{Key: addr}
}

func (f *fixture) custody() *Account {
	return account(f.cfg.CustodyAddress)
}

func (f *fixture) run(ins instruction.Instruction, accounts ...*Account) (*Result, error) {
	f.t.Helper()
	res, err := f.proc.Process(context.Background(), f.ledger, accounts, instruction.MustEncode(ins))
	if err == nil {
		if owner, ok := f.ledger.AccountOwner(f.slot.Key); ok {
			f.slot.Owner = owner
		}
	}
	return res, err
}

func (f *fixture) state() *market.State {
	f.t.Helper()
	st, err := market.Decode(f.slot.Data)
	require.NoError(f.t, err)
	return st
}

func (f *fixture) bootstrap(listingPrice uint64) {
	f.t.Helper()
	ins := &instruction.InitState{}
	ins.ListingPrice.SetUint64(listingPrice)
	_, err := f.run(ins, signer("admin"), f.slot, account(f.cfg.SystemProgram))
	require.NoError(f.t, err)
}

func listing(asset string, price uint64) *instruction.CreateMarketItem {
	ins := &instruction.CreateMarketItem{
		AssetProgram: nft,
		AssetID:      testutil.Addr(asset),
		FileName:     asset + ".png",
		Description:  "asset " + asset,
	}
	ins.Price.SetUint64(price)
	return ins
}

func (f *fixture) list(seller, asset string, price uint64) uint64 {
	f.t.Helper()
	f.ledger.Mint(nft, testutil.Addr(asset), testutil.Addr(seller))
	res, err := f.run(listing(asset, price), signer(seller), f.slot, f.custody())
	require.NoError(f.t, err)
	return res.State.ItemCount
}

func purchase(id, price uint64) *instruction.PurchaseSale {
	ins := &instruction.PurchaseSale{AssetProgram: nft}
	ins.ItemID.SetUint64(id)
	ins.Price.SetUint64(price)
	return ins
}

func (f *fixture) buy(buyer string, id uint64) {
	f.t.Helper()
	st := f.state()
	item, ok := st.Item(id)
	require.True(f.t, ok)
	_, err := f.run(purchase(id, item.Price.Uint64()),
		signer(buyer), f.slot, account(item.Seller), account(st.Owner), f.custody())
	require.NoError(f.t, err)
}

func gacha(qty uint8, price, fee uint64) *instruction.Gacha {
	ins := &instruction.Gacha{AssetProgram: nft, Qty: qty}
	ins.Price.SetUint64(price)
	ins.Fee.SetUint64(fee)
	return ins
}

func TestInitState(t *testing.T) {
	f := newFixture(t)

	ins := &instruction.InitState{}
	ins.ListingPrice.SetUint64(7)
	res, err := f.run(ins, signer("admin"), f.slot, account(common.Address{}))
	require.NoError(t, err)

	require.Len(t, res.Effects, 1)
	assert.Equal(t, "create_account", res.Effects[0].Kind())

	st := f.state()
	assert.True(t, st.Initialized)
	assert.Equal(t, testutil.Addr("admin"), st.Owner)
	assert.Equal(t, uint64(7), st.ListingPrice.Uint64())
	assert.Equal(t, sampler.InitialSeed, st.Seed)
	assert.Zero(t, st.ItemCount)
	assert.Empty(t, st.Items)

	assert.Equal(t, uint64(10_000-market.InitialSpace), f.ledger.Balance(testutil.Addr("admin")))
	assert.Equal(t, f.cfg.ProgramID, f.slot.Owner)
}

func TestInitStateTwiceLeavesSlotUnchanged(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	before := bytes.Clone(f.slot.Data)

	ins := &instruction.InitState{}
	ins.ListingPrice.SetUint64(99)
	_, err := f.run(ins, signer("admin"), f.slot, account(common.Address{}))
	assert.True(t, IsCode(err, AlreadyInitialized), "got %v", err)
	assert.Equal(t, before, f.slot.Data)
}

func TestInitStateRejections(t *testing.T) {
	ins := &instruction.InitState{}

	tests := []struct {
		name     string
		accounts func(f *fixture) []*Account
		code     ErrorCode
	}{
		{
			name: "unsigned authority",
			accounts: func(f *fixture) []*Account {
				return []*Account{account(testutil.Addr("admin")), f.slot, account(common.Address{})}
			},
			code: MissingRequiredSignature,
		},
		{
			name: "wrong slot",
			accounts: func(f *fixture) []*Account {
				return []*Account{signer("admin"), {Key: testutil.Addr("elsewhere"), IsWritable: true}, account(common.Address{})}
			},
			code: InvalidStateAccount,
		},
		{
			name: "read-only slot",
			accounts: func(f *fixture) []*Account {
				return []*Account{signer("admin"), {Key: f.cfg.StateAddress}, account(common.Address{})}
			},
			code: InvalidStateAccount,
		},
		{
			name: "foreign slot data",
			accounts: func(f *fixture) []*Account {
				f.slot.Data = []byte("garbage")
				return []*Account{signer("admin"), f.slot, account(common.Address{})}
			},
			code: InvalidStateAccount,
		},
		{
			name: "wrong system program",
			accounts: func(f *fixture) []*Account {
				return []*Account{signer("admin"), f.slot, account(testutil.Addr("impostor"))}
			},
			code: InvalidAccount,
		},
		{
			name: "missing accounts",
			accounts: func(f *fixture) []*Account {
				return []*Account{signer("admin"), f.slot}
			},
			code: NotEnoughAccountKeys,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.run(ins, tt.accounts(f)...)
			code, ok := CodeOf(err)
			require.True(t, ok, "expected ProcessError, got %v", err)
			assert.Equal(t, tt.code, code)
			assert.Empty(t, f.ledger.Calls)
		})
	}
}

// Bootstrap, then list one item.
func TestScenarioBootstrapAndList(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)

	id := f.list("seller", "sword", 1)

	st := f.state()
	assert.Equal(t, uint64(1), id)
	assert.Equal(t, uint64(1), st.ItemCount)
	item, ok := st.Item(1)
	require.True(t, ok)
	assert.Nil(t, item.Owner)
	assert.False(t, item.Sold)

	holder, _ := f.ledger.Holder(nft, testutil.Addr("sword"))
	assert.Equal(t, f.cfg.CustodyAddress, holder)
}

func TestListingMetadataStoredVerbatim(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)

	ins := listing("sword", 5)
	ins.FileName = "A\u030a.png"
	ins.Description = "cafe\u0301"
	f.ledger.Mint(nft, testutil.Addr("sword"), testutil.Addr("seller"))
	_, err := f.run(ins, signer("seller"), f.slot, f.custody())
	require.NoError(t, err)

	item, ok := f.state().Item(1)
	require.True(t, ok)
	assert.Equal(t, "A\u030a.png", item.FileName)
	assert.Equal(t, "cafe\u0301", item.Description)
}

// Bootstrap, list, then buy the item.
func TestScenarioPurchase(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	f.list("seller", "sword", 1)
	f.ledger.Fund(testutil.Addr("buyer"), 10)
	adminBefore := f.ledger.Balance(testutil.Addr("admin"))

	f.buy("buyer", 1)

	st := f.state()
	item, _ := st.Item(1)
	require.NotNil(t, item.Owner)
	assert.Equal(t, testutil.Addr("buyer"), *item.Owner)
	assert.True(t, item.Sold)
	assert.Equal(t, uint64(1), st.SoldCount)

	assert.Equal(t, uint64(1), f.ledger.Balance(testutil.Addr("seller")))
	assert.Equal(t, adminBefore+1, f.ledger.Balance(testutil.Addr("admin")))
	assert.Equal(t, uint64(8), f.ledger.Balance(testutil.Addr("buyer")))

	holder, _ := f.ledger.Holder(nft, testutil.Addr("sword"))
	assert.Equal(t, testutil.Addr("buyer"), holder)
}

// Three owned items at price 5, draw two for the caller.
func TestScenarioGacha(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	for i, asset := range []string{"a", "b", "c"} {
		f.list("seller", asset, 5)
		buyer := fmt.Sprintf("buyer-%d", i)
		f.ledger.Fund(testutil.Addr(buyer), 10)
		f.buy(buyer, uint64(i+1))
	}
	f.ledger.Fund(testutil.Addr("player"), 100)
	before := f.state()

	_, err := f.run(gacha(4, 5, 10), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
	assert.True(t, IsCode(err, InvalidDrawSize), "got %v", err)

	res, err := f.run(gacha(2, 5, 10), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
	require.NoError(t, err)
	require.Len(t, res.Effects, 3)
	assert.Equal(t, "transfer_value", res.Effects[0].Kind())

	st := f.state()
	player := testutil.Addr("player")
	drawn := 0
	for i := range st.Items {
		item := &st.Items[i]
		if item.Gacha {
			drawn++
			assert.Equal(t, player, *item.Owner)
			holder, _ := f.ledger.Holder(nft, item.AssetID)
			assert.Equal(t, player, holder)
			continue
		}
		assert.Equal(t, before.Items[i], *item)
	}
	assert.Equal(t, 2, drawn)

	// Draw(3, 2) from the initial seed picks positions 2 and 1.
	assert.True(t, st.Items[1].Gacha)
	assert.True(t, st.Items[2].Gacha)
	assert.NotEqual(t, sampler.InitialSeed, st.Seed)

	assert.Equal(t, uint64(3), st.SoldCount, "sold_count saturates at item_count")
	assert.Equal(t, uint64(90), f.ledger.Balance(player))
	assert.Equal(t, uint64(15+10), f.ledger.Balance(testutil.Addr("seller")))
}

func TestCreateMarketItemIncrementsCount(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)

	for want := uint64(1); want <= 5; want++ {
		id := f.list("seller", fmt.Sprintf("asset-%d", want), want)
		assert.Equal(t, want, id)
		assert.Equal(t, want, f.state().ItemCount)
	}
}

func TestCreateMarketItemRejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture) (instruction.Instruction, []*Account)
		code  ErrorCode
	}{
		{
			name: "zero price",
			setup: func(f *fixture) (instruction.Instruction, []*Account) {
				return listing("x", 0), []*Account{signer("seller"), f.slot, f.custody()}
			},
			code: InvalidPrice,
		},
		{
			name: "cash back at limit",
			setup: func(f *fixture) (instruction.Instruction, []*Account) {
				ins := listing("x", 1)
				ins.CashBackPercent = 100
				return ins, []*Account{signer("seller"), f.slot, f.custody()}
			},
			code: CashbackMax,
		},
		{
			name: "cash back far above limit",
			setup: func(f *fixture) (instruction.Instruction, []*Account) {
				ins := listing("x", 1)
				ins.CashBackPercent = 255
				return ins, []*Account{signer("seller"), f.slot, f.custody()}
			},
			code: CashbackMax,
		},
		{
			name: "unsigned seller",
			setup: func(f *fixture) (instruction.Instruction, []*Account) {
				return listing("x", 1), []*Account{account(testutil.Addr("seller")), f.slot, f.custody()}
			},
			code: MissingRequiredSignature,
		},
		{
			name: "wrong custody",
			setup: func(f *fixture) (instruction.Instruction, []*Account) {
				return listing("x", 1), []*Account{signer("seller"), f.slot, account(testutil.Addr("thief"))}
			},
			code: InvalidAccount,
		},
		{
			name: "extra account",
			setup: func(f *fixture) (instruction.Instruction, []*Account) {
				return listing("x", 1), []*Account{signer("seller"), f.slot, f.custody(), f.custody()}
			},
			code: InvalidAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.bootstrap(1)
			f.ledger.Mint(nft, testutil.Addr("x"), testutil.Addr("seller"))
			before := bytes.Clone(f.slot.Data)

			ins, accounts := tt.setup(f)
			_, err := f.run(ins, accounts...)
			assert.True(t, IsCode(err, tt.code), "got %v", err)
			assert.Equal(t, before, f.slot.Data)
		})
	}
}

func TestCreateMarketItemUninitialized(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(listing("x", 1), signer("seller"), f.slot, f.custody())
	assert.True(t, IsCode(err, InvalidStateAccount), "got %v", err)
}

func TestCreateMarketItemRegistryFull(t *testing.T) {
	f := newFixture(t, WithMaxItems(2))
	f.bootstrap(1)
	f.list("seller", "a", 1)
	f.list("seller", "b", 1)

	f.ledger.Mint(nft, testutil.Addr("c"), testutil.Addr("seller"))
	_, err := f.run(listing("c", 1), signer("seller"), f.slot, f.custody())
	assert.True(t, IsCode(err, RegistryFull), "got %v", err)
	assert.Equal(t, uint64(2), f.state().ItemCount)
}

func TestPurchaseSaleRejections(t *testing.T) {
	huge := &instruction.PurchaseSale{AssetProgram: nft}
	huge.ItemID.Lsh(uint256.NewInt(1), 64)
	huge.Price.SetUint64(3)

	wrongProgram := purchase(1, 3)
	wrongProgram.AssetProgram = testutil.Addr("other-program")

	tests := []struct {
		name   string
		ins    *instruction.PurchaseSale
		seller string
		code   ErrorCode
	}{
		{"price mismatch", purchase(1, 4), "seller", InvalidPayment},
		{"id zero", purchase(0, 3), "seller", NoSuchItem},
		{"id past end", purchase(2, 3), "seller", NoSuchItem},
		{"id beyond u64", huge, "seller", NoSuchItem},
		{"wrong asset program", wrongProgram, "seller", InvalidAccount},
		{"wrong seller", purchase(1, 3), "mallory", InvalidAccount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.bootstrap(1)
			f.list("seller", "sword", 3)
			f.ledger.Fund(testutil.Addr("buyer"), 10)
			before := bytes.Clone(f.slot.Data)

			_, err := f.run(tt.ins, signer("buyer"), f.slot,
				account(testutil.Addr(tt.seller)), account(testutil.Addr("admin")), f.custody())
			assert.True(t, IsCode(err, tt.code), "got %v", err)

			assert.Equal(t, before, f.slot.Data)
			item, _ := f.state().Item(1)
			assert.Nil(t, item.Owner)
			assert.False(t, item.Sold)
			assert.Equal(t, uint64(10), f.ledger.Balance(testutil.Addr("buyer")))
		})
	}
}

func TestPurchaseSaleAlreadySold(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	f.list("seller", "sword", 3)
	f.ledger.Fund(testutil.Addr("first"), 10)
	f.ledger.Fund(testutil.Addr("second"), 10)
	f.buy("first", 1)

	_, err := f.run(purchase(1, 3), signer("second"), f.slot,
		account(testutil.Addr("seller")), account(testutil.Addr("admin")), f.custody())
	assert.True(t, IsCode(err, ItemAlreadySold), "got %v", err)
	assert.Equal(t, uint64(10), f.ledger.Balance(testutil.Addr("second")))
}

func TestPurchaseSaleTransferFailureKeepsSlot(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	f.list("seller", "sword", 3)
	f.ledger.Fund(testutil.Addr("buyer"), 10)
	before := bytes.Clone(f.slot.Data)

	// Fail the listing-price payment, the third effect.
	f.ledger.FailAt = len(f.ledger.Calls) + 3
	_, err := f.run(purchase(1, 3), signer("buyer"), f.slot,
		account(testutil.Addr("seller")), account(testutil.Addr("admin")), f.custody())

	require.Error(t, err)
	assert.True(t, IsCode(err, TransferError))
	assert.ErrorIs(t, err, testutil.ErrInjected)
	assert.Equal(t, before, f.slot.Data)
}

func TestPurchaseSaleInsufficientFunds(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	f.list("seller", "sword", 3)
	f.ledger.Fund(testutil.Addr("buyer"), 1)

	_, err := f.run(purchase(1, 3), signer("buyer"), f.slot,
		account(testutil.Addr("seller")), account(testutil.Addr("admin")), f.custody())
	assert.True(t, IsCode(err, TransferError), "got %v", err)
}

func TestGachaZeroQtyIsNoop(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	f.list("seller", "a", 5)
	f.ledger.Fund(testutil.Addr("buyer"), 10)
	f.buy("buyer", 1)
	before := bytes.Clone(f.slot.Data)

	res, err := f.run(gacha(0, 5, 10), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
	require.NoError(t, err)
	assert.Empty(t, res.Effects)
	assert.Equal(t, before, f.slot.Data)
}

func TestGachaRejections(t *testing.T) {
	f := newFixture(t)

	_, err := f.run(gacha(1, 5, 0), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
	assert.True(t, IsCode(err, InvalidDrawSize), "uninitialized registry: %v", err)

	f.bootstrap(1)
	f.list("seller", "a", 5)
	f.list("seller", "b", 6)
	f.ledger.Fund(testutil.Addr("buyer"), 20)
	f.buy("buyer", 1)
	f.buy("buyer", 2)

	_, err = f.run(gacha(2, 5, 0), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
	assert.True(t, IsCode(err, InvalidDrawSize), "price filter leaves one item: %v", err)

	_, err = f.run(gacha(1, 5, 0), signer("player"), f.slot, account(testutil.Addr("mallory")), f.custody())
	assert.True(t, IsCode(err, InvalidAccount), "fee recipient: %v", err)

	_, err = f.run(gacha(1, 5, 0), account(testutil.Addr("player")), f.slot, account(testutil.Addr("seller")), f.custody())
	assert.True(t, IsCode(err, MissingRequiredSignature), "signature: %v", err)
}

func TestGachaSeedProgresses(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	for i, asset := range []string{"a", "b", "c", "d", "e"} {
		f.list("seller", asset, 5)
		f.ledger.Fund(testutil.Addr("buyer"), 6)
		f.buy("buyer", uint64(i+1))
	}
	f.ledger.Fund(testutil.Addr("player"), 100)

	seeds := []uint64{f.state().Seed}
	for range 3 {
		_, err := f.run(gacha(1, 5, 1), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
		require.NoError(t, err)
		seeds = append(seeds, f.state().Seed)
	}
	for i := 1; i < len(seeds); i++ {
		assert.NotEqual(t, seeds[i-1], seeds[i])
	}
}

func TestCreateGacha(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(2)
	for i, asset := range []string{"a", "b", "c", "d"} {
		f.list("seller", asset, uint64(i+1))
	}
	f.ledger.Fund(testutil.Addr("buyer"), 100)
	f.buy("buyer", 1)
	f.buy("buyer", 3)
	f.ledger.Fund(testutil.Addr("caller"), 10)
	admin := testutil.Addr("admin")
	adminBefore := f.ledger.Balance(admin)

	res, err := f.run(&instruction.CreateGacha{AssetProgram: nft, Qty: 2},
		signer("caller"), f.slot, account(admin), f.custody())
	require.NoError(t, err)

	kinds := make([]string, len(res.Effects))
	for i, e := range res.Effects {
		kinds[i] = e.Kind()
	}
	assert.Equal(t, []string{"transfer_asset", "transfer_value", "transfer_asset", "transfer_value"}, kinds)

	st := f.state()
	for _, id := range []uint64{1, 3} {
		item, _ := st.Item(id)
		assert.True(t, item.Gacha)
		assert.Equal(t, admin, *item.Owner)
		holder, _ := f.ledger.Holder(nft, item.AssetID)
		assert.Equal(t, admin, holder)
	}
	for _, id := range []uint64{2, 4} {
		item, _ := st.Item(id)
		assert.False(t, item.Gacha)
		assert.Nil(t, item.Owner)
	}

	assert.Equal(t, uint64(4), st.SoldCount, "one per drawn item")
	assert.Equal(t, uint64(6), f.ledger.Balance(testutil.Addr("caller")))
	assert.Equal(t, adminBefore+4, f.ledger.Balance(admin))
}

func TestCreateGachaRejections(t *testing.T) {
	f := newFixture(t)
	create := &instruction.CreateGacha{AssetProgram: nft, Qty: 1}

	_, err := f.run(create, signer("caller"), f.slot, account(testutil.Addr("admin")), f.custody())
	assert.True(t, IsCode(err, InvalidDrawSize), "uninitialized: %v", err)

	f.bootstrap(1)
	f.list("seller", "a", 5)

	_, err = f.run(create, signer("caller"), f.slot, account(testutil.Addr("admin")), f.custody())
	assert.True(t, IsCode(err, InvalidDrawSize), "nothing owned yet: %v", err)

	_, err = f.run(create, signer("caller"), f.slot, account(testutil.Addr("mallory")), f.custody())
	assert.True(t, IsCode(err, InvalidAccount), "market owner: %v", err)

	_, err = f.run(create, signer("caller"), f.slot, account(testutil.Addr("admin")))
	assert.True(t, IsCode(err, NotEnoughAccountKeys), "short account list: %v", err)
}

func TestGachaSoldCountPerCall(t *testing.T) {
	f := newFixture(t)
	f.bootstrap(1)
	for _, asset := range []string{"a", "b", "c", "d"} {
		f.list("seller", asset, 5)
	}
	f.ledger.Fund(testutil.Addr("buyer"), 100)
	f.buy("buyer", 1)
	f.buy("buyer", 2)
	f.ledger.Fund(testutil.Addr("player"), 10)

	_, err := f.run(gacha(2, 5, 1), signer("player"), f.slot, account(testutil.Addr("seller")), f.custody())
	require.NoError(t, err)
	assert.Equal(t, uint64(3), f.state().SoldCount)
}

func TestProcessRejectsMalformedData(t *testing.T) {
	f := newFixture(t)
	_, err := f.proc.Process(context.Background(), f.ledger, []*Account{signer("admin")}, []byte{42})
	assert.True(t, IsCode(err, InvalidInstructionData), "got %v", err)
	assert.ErrorIs(t, err, instruction.ErrInvalidInstruction)
}

func TestProcessErrorFormatting(t *testing.T) {
	f := newFixture(t)
	_, err := f.run(listing("x", 0), signer("seller"), f.slot, f.custody())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create_market_item: InvalidPrice")

	wrapped := fmt.Errorf("execute: %w", err)
	code, ok := CodeOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, InvalidPrice, code)
}

func TestErrorCodeNames(t *testing.T) {
	assert.Equal(t, "TransferError", TransferError.String())
	assert.Equal(t, 9, int(TransferError))
	assert.Equal(t, 14, int(InvalidInstructionData))
	assert.Equal(t, "ErrorCode(99)", ErrorCode(99).String())

	for c := InvalidPrice; c <= InvalidInstructionData; c++ {
		parsed, ok := ParseErrorCode(c.String())
		require.True(t, ok)
		assert.Equal(t, c, parsed)
	}
	_, ok := ParseErrorCode("Nope")
	assert.False(t, ok)
}
