package engine

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tungla20/Solana-MKP/internal/instruction"
	"github.com/tungla20/Solana-MKP/internal/market"
	"github.com/tungla20/Solana-MKP/internal/sampler"
)

// Handlers validate, mutate the decoded registry in memory and return the
// effects to apply. None of them call capabilities directly.

// initState accounts: [authority (signer), state slot (writable), system program].
func (p *Processor) initState(accounts []*Account, ins *instruction.InitState) (*market.State, []Effect, error) {
	if err := expectAccounts(accounts, 3); err != nil {
		return nil, nil, err
	}
	authority, slot, system := accounts[0], accounts[1], accounts[2]

	if err := requireSigner(authority, "authority"); err != nil {
		return nil, nil, err
	}
	if slot.Key != p.cfg.StateAddress {
		return nil, nil, reject(InvalidStateAccount, "state account %s does not match %s", slot.Key.Hex(), p.cfg.StateAddress.Hex())
	}
	if !slot.IsWritable {
		return nil, nil, reject(InvalidStateAccount, "state account is not writable")
	}
	if len(slot.Data) > 0 {
		existing, err := market.Decode(slot.Data)
		if err == nil && existing.Initialized {
			return nil, nil, reject(AlreadyInitialized, "registry already initialized")
		}
		return nil, nil, reject(InvalidStateAccount, "state account holds foreign data")
	}
	if err := requireKey(system, p.cfg.SystemProgram, "system program"); err != nil {
		return nil, nil, err
	}

	st := market.NewState(authority.Key, &ins.ListingPrice, sampler.InitialSeed)
	effects := []Effect{&AccountCreation{
		Payer:   authority.Key,
		Account: slot.Key,
		Space:   market.InitialSpace,
		Owner:   p.cfg.ProgramID,
	}}
	return st, effects, nil
}

// createMarketItem accounts: [seller (signer), state (writable), custody].
func (p *Processor) createMarketItem(accounts []*Account, ins *instruction.CreateMarketItem) (*market.State, []Effect, error) {
	if ins.Price.IsZero() {
		return nil, nil, reject(InvalidPrice, "price must be positive")
	}
	if ins.CashBackPercent >= market.MaxCashBackPercent {
		return nil, nil, reject(CashbackMax, "cash back %d%% must be below %d%%", ins.CashBackPercent, market.MaxCashBackPercent)
	}
	if err := expectAccounts(accounts, 3); err != nil {
		return nil, nil, err
	}
	seller, slot, custody := accounts[0], accounts[1], accounts[2]

	if err := requireSigner(seller, "seller"); err != nil {
		return nil, nil, err
	}
	st, err := p.loadState(slot, InvalidStateAccount)
	if err != nil {
		return nil, nil, err
	}
	if err := requireKey(custody, p.cfg.CustodyAddress, "custody"); err != nil {
		return nil, nil, err
	}
	if len(st.Items) >= p.maxItems {
		return nil, nil, reject(RegistryFull, "registry holds %d items", len(st.Items))
	}

	item := market.Item{
		AssetProgram:    ins.AssetProgram,
		AssetID:         ins.AssetID,
		Seller:          seller.Key,
		FileName:        ins.FileName,
		Description:     ins.Description,
		CashBackPercent: ins.CashBackPercent,
	}
	item.Price.Set(&ins.Price)
	id := st.Append(item)

	p.logger.Debug("listing created", "item_id", id, "seller", seller.Key.Hex())

	effects := []Effect{&AssetTransfer{
		Program:   ins.AssetProgram,
		Asset:     ins.AssetID,
		From:      seller.Key,
		To:        custody.Key,
		Authority: seller.Key,
	}}
	return st, effects, nil
}

// purchaseSale accounts: [buyer (signer), state (writable), seller, market owner, custody].
func (p *Processor) purchaseSale(accounts []*Account, ins *instruction.PurchaseSale) (*market.State, []Effect, error) {
	if err := expectAccounts(accounts, 5); err != nil {
		return nil, nil, err
	}
	buyer, slot, seller, owner, custody := accounts[0], accounts[1], accounts[2], accounts[3], accounts[4]

	if err := requireSigner(buyer, "buyer"); err != nil {
		return nil, nil, err
	}
	st, err := p.loadState(slot, InvalidStateAccount)
	if err != nil {
		return nil, nil, err
	}

	if !ins.ItemID.IsUint64() {
		return nil, nil, reject(NoSuchItem, "item %s not found", ins.ItemID.Dec())
	}
	item, ok := st.Item(ins.ItemID.Uint64())
	if !ok {
		return nil, nil, reject(NoSuchItem, "item %s not found", ins.ItemID.Dec())
	}
	if item.AssetProgram != ins.AssetProgram {
		return nil, nil, reject(InvalidAccount, "asset program %s does not match item %d", ins.AssetProgram.Hex(), item.ID)
	}
	if item.Owned() {
		return nil, nil, reject(ItemAlreadySold, "item %d already owned by %s", item.ID, item.Owner.Hex())
	}
	if !item.Price.Eq(&ins.Price) {
		return nil, nil, reject(InvalidPayment, "asserted price %s, item %d costs %s", ins.Price.Dec(), item.ID, item.Price.Dec())
	}
	if err := requireKey(seller, item.Seller, "seller"); err != nil {
		return nil, nil, err
	}
	if err := requireKey(owner, st.Owner, "market owner"); err != nil {
		return nil, nil, err
	}
	if err := requireKey(custody, p.cfg.CustodyAddress, "custody"); err != nil {
		return nil, nil, err
	}

	effects := []Effect{
		valueTransfer(buyer.Key, seller.Key, &item.Price),
		&AssetTransfer{
			Program:   item.AssetProgram,
			Asset:     item.AssetID,
			From:      custody.Key,
			To:        buyer.Key,
			Authority: custody.Key,
		},
		valueTransfer(buyer.Key, owner.Key, &st.ListingPrice),
	}

	item.SetOwner(buyer.Key)
	item.Sold = true
	st.AddSold(1)

	return st, effects, nil
}

// gacha accounts: [caller (signer), state (writable), fee recipient, custody].
func (p *Processor) gacha(accounts []*Account, ins *instruction.Gacha) (*market.State, []Effect, error) {
	if err := expectAccounts(accounts, 4); err != nil {
		return nil, nil, err
	}
	caller, slot, recipient, custody := accounts[0], accounts[1], accounts[2], accounts[3]

	if err := requireSigner(caller, "caller"); err != nil {
		return nil, nil, err
	}
	st, err := p.loadState(slot, InvalidDrawSize)
	if err != nil {
		return nil, nil, err
	}
	if err := requireKey(custody, p.cfg.CustodyAddress, "custody"); err != nil {
		return nil, nil, err
	}
	if ins.Qty == 0 {
		return st, nil, nil
	}

	eligible := st.Eligible(func(it *market.Item) bool {
		return it.Owned() && it.Price.Eq(&ins.Price)
	})
	if int(ins.Qty) > len(eligible) {
		return nil, nil, reject(InvalidDrawSize, "qty %d exceeds %d eligible items", ins.Qty, len(eligible))
	}
	if err := requireKey(recipient, eligible[0].Seller, "fee recipient"); err != nil {
		return nil, nil, err
	}

	drawn, err := p.draw(st, eligible, int(ins.Qty), caller.Key, custody.Key)
	if err != nil {
		return nil, nil, err
	}

	effects := make([]Effect, 0, 1+len(drawn))
	effects = append(effects, valueTransfer(caller.Key, recipient.Key, &ins.Fee))
	effects = append(effects, drawn...)
	st.AddSold(1)

	return st, effects, nil
}

// createGacha accounts: [caller (signer), state (writable), market owner, custody].
func (p *Processor) createGacha(accounts []*Account, ins *instruction.CreateGacha) (*market.State, []Effect, error) {
	if err := expectAccounts(accounts, 4); err != nil {
		return nil, nil, err
	}
	caller, slot, owner, custody := accounts[0], accounts[1], accounts[2], accounts[3]

	if err := requireSigner(caller, "caller"); err != nil {
		return nil, nil, err
	}
	st, err := p.loadState(slot, InvalidDrawSize)
	if err != nil {
		return nil, nil, err
	}
	if err := requireKey(owner, st.Owner, "market owner"); err != nil {
		return nil, nil, err
	}
	if err := requireKey(custody, p.cfg.CustodyAddress, "custody"); err != nil {
		return nil, nil, err
	}
	if ins.Qty == 0 {
		return st, nil, nil
	}

	eligible := st.Eligible((*market.Item).Owned)
	if int(ins.Qty) > len(eligible) {
		return nil, nil, reject(InvalidDrawSize, "qty %d exceeds %d eligible items", ins.Qty, len(eligible))
	}

	drawn, err := p.draw(st, eligible, int(ins.Qty), owner.Key, custody.Key)
	if err != nil {
		return nil, nil, err
	}

	effects := make([]Effect, 0, 2*len(drawn))
	for _, transfer := range drawn {
		effects = append(effects, transfer, valueTransfer(caller.Key, owner.Key, &st.ListingPrice))
	}
	st.AddSold(uint64(ins.Qty))

	return st, effects, nil
}

// draw picks k items from eligible, reassigns them to recipient and returns
// one asset transfer per drawn item in draw order. The registry seed is
// advanced past the numbers consumed.
func (p *Processor) draw(st *market.State, eligible []*market.Item, k int, recipient, custody common.Address) ([]Effect, error) {
	src := sampler.NewSource(st.Seed)
	positions, err := sampler.Draw(src, len(eligible), k)
	if errors.Is(err, sampler.ErrInvalidDrawSize) {
		return nil, rejectWrap(InvalidDrawSize, err, "draw %d of %d", k, len(eligible))
	}
	if err != nil {
		return nil, err
	}
	st.Seed = src.State()

	out := make([]Effect, 0, k)
	for _, pos := range positions {
		item := eligible[pos]
		previous := *item.Owner
		item.SetOwner(recipient)
		item.Gacha = true

		p.logger.Debug("item drawn", "item_id", item.ID, "position", pos, "recipient", recipient.Hex())

		out = append(out, &AssetTransfer{
			Program:   item.AssetProgram,
			Asset:     item.AssetID,
			From:      previous,
			To:        recipient,
			Authority: custody,
		})
	}
	return out, nil
}
