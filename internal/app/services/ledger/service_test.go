package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/domain/balance"
	"github.com/reelpay/ledger/internal/app/domain/catalog"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/storage/memory"
	"github.com/reelpay/ledger/internal/chain"
)

type fixture struct {
	store  *memory.Store
	svc    *Service
	bridge *chain.Simulator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	store := memory.New()
	bridge := chain.NewSimulator(nil)
	opts = append(opts, WithBridge(bridge))
	svc := New(store, store, store, store, store, nil, opts...)
	return &fixture{store: store, svc: svc, bridge: bridge}
}

func (f *fixture) platform(t *testing.T, owner string) string {
	t.Helper()
	p, err := f.svc.CreatePlatform(context.Background(), "reelpay", owner)
	if err != nil {
		t.Fatalf("create platform: %v", err)
	}
	return p.ID
}

func (f *fixture) account(t *testing.T, platformID, address string) string {
	t.Helper()
	acct, err := f.store.CreateAccount(context.Background(), accountFor(platformID, address))
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	return acct.ID
}

func (f *fixture) item(t *testing.T, platformID, uploaderID string, price int64) string {
	t.Helper()
	it, err := f.store.CreateItem(context.Background(), itemFor(platformID, uploaderID, price))
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	return it.ID
}

func accountFor(platformID, address string) account.Account {
	return account.Account{PlatformID: platformID, Address: address}
}

func itemFor(platformID, uploaderID string, price int64) catalog.Item {
	return catalog.Item{PlatformID: platformID, UploaderID: uploaderID, Title: "item", Price: price}
}

func TestPurchaseLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")
	bobID := f.account(t, platformID, "bob-address")
	itemID := f.item(t, platformID, bobID, 40)

	if _, err := f.svc.Deposit(ctx, aliceID, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	rec, err := f.svc.Purchase(ctx, aliceID, itemID)
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if rec.Kind != ledgertx.KindPurchase || rec.Amount != 40 || rec.ItemID != itemID {
		t.Fatalf("unexpected record: %+v", rec)
	}

	acct, err := f.store.GetAccount(ctx, aliceID)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if acct.Balance.Value() != 60 {
		t.Fatalf("expected balance 60, got %d", acct.Balance.Value())
	}

	plat, err := f.svc.GetPlatform(ctx, platformID)
	if err != nil {
		t.Fatalf("get platform: %v", err)
	}
	if plat.Treasury.Value() != 40 {
		t.Fatalf("expected treasury 40, got %d", plat.Treasury.Value())
	}

	if _, err := f.svc.Withdraw(ctx, platformID, 40, "owner-address"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	plat, _ = f.svc.GetPlatform(ctx, platformID)
	if !plat.Treasury.IsZero() {
		t.Fatalf("expected drained treasury, got %d", plat.Treasury.Value())
	}

	if _, err := f.svc.Withdraw(ctx, platformID, 1, "owner-address"); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}

	recs, err := f.svc.TransactionsForPlatform(ctx, platformID)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records (deposit, purchase, withdrawal), got %d", len(recs))
	}
	if recs[0].Kind != ledgertx.KindDeposit || recs[1].Kind != ledgertx.KindPurchase || recs[2].Kind != ledgertx.KindWithdrawal {
		t.Fatalf("unexpected record order: %v %v %v", recs[0].Kind, recs[1].Kind, recs[2].Kind)
	}

	// Owner received exactly what the bridge released.
	if got := f.bridge.NetCollected("owner-address"); got != -40 {
		t.Fatalf("expected owner to receive 40 externally, net %d", got)
	}
}

func TestPurchaseInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")
	itemID := f.item(t, platformID, aliceID, 50)

	if _, err := f.svc.Deposit(ctx, aliceID, 49); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := f.svc.Purchase(ctx, aliceID, itemID); !errors.Is(err, balance.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Failed purchase is a complete no-op.
	acct, _ := f.store.GetAccount(ctx, aliceID)
	if acct.Balance.Value() != 49 {
		t.Fatalf("balance changed by failed purchase: %d", acct.Balance.Value())
	}
	plat, _ := f.svc.GetPlatform(ctx, platformID)
	if !plat.Treasury.IsZero() {
		t.Fatalf("treasury changed by failed purchase: %d", plat.Treasury.Value())
	}
	recs, _ := f.svc.TransactionsForPlatform(ctx, platformID)
	if len(recs) != 1 {
		t.Fatalf("failed purchase must not append a record, got %d records", len(recs))
	}
}

func TestPurchaseExactBalance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")
	itemID := f.item(t, platformID, aliceID, 50)

	if _, err := f.svc.Deposit(ctx, aliceID, 50); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.svc.Purchase(ctx, aliceID, itemID); err != nil {
		t.Fatalf("purchase at exact balance should succeed: %v", err)
	}

	acct, _ := f.store.GetAccount(ctx, aliceID)
	if !acct.Balance.IsZero() {
		t.Fatalf("expected zero balance, got %d", acct.Balance.Value())
	}
}

func TestPurchaseUnknownItem(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")

	if _, err := f.svc.Purchase(ctx, aliceID, "missing"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestPurchaseItemFromOtherPlatform(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p1 := f.platform(t, "owner-one")
	p2 := f.platform(t, "owner-two")
	aliceID := f.account(t, p1, "alice-address")
	uploaderID := f.account(t, p2, "uploader-address")
	foreignItem := f.item(t, p2, uploaderID, 10)

	if _, err := f.svc.Deposit(ctx, aliceID, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.svc.Purchase(ctx, aliceID, foreignItem); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("cross-platform purchase must fail with ErrItemNotFound, got %v", err)
	}
}

func TestWithdrawNotOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")
	itemID := f.item(t, platformID, aliceID, 30)

	if _, err := f.svc.Deposit(ctx, aliceID, 30); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.svc.Purchase(ctx, aliceID, itemID); err != nil {
		t.Fatalf("purchase: %v", err)
	}

	if _, err := f.svc.Withdraw(ctx, platformID, 30, "alice-address"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	// Denied withdrawal leaves the treasury untouched.
	plat, _ := f.svc.GetPlatform(ctx, platformID)
	if plat.Treasury.Value() != 30 {
		t.Fatalf("treasury changed by denied withdrawal: %d", plat.Treasury.Value())
	}
}

func TestWithdrawNegativeAmount(t *testing.T) {
	f := newFixture(t)
	platformID := f.platform(t, "owner-address")

	if _, err := f.svc.Withdraw(context.Background(), platformID, -1, "owner-address"); !errors.Is(err, balance.ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestDepositNegativeAmount(t *testing.T) {
	f := newFixture(t)
	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")

	if _, err := f.svc.Deposit(context.Background(), aliceID, -1); !errors.Is(err, balance.ErrNegativeAmount) {
		t.Fatalf("expected ErrNegativeAmount, got %v", err)
	}
}

func TestDepositUnknownAccount(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.Deposit(context.Background(), "missing", 10); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestDeferredSettlement(t *testing.T) {
	f := newFixture(t, WithSettlementMode(SettleDeferred))
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")
	item1 := f.item(t, platformID, aliceID, 30)
	item2 := f.item(t, platformID, aliceID, 20)

	if _, err := f.svc.Deposit(ctx, aliceID, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	if _, err := f.svc.Purchase(ctx, aliceID, item1); err != nil {
		t.Fatalf("purchase 1: %v", err)
	}
	if _, err := f.svc.Purchase(ctx, aliceID, item2); err != nil {
		t.Fatalf("purchase 2: %v", err)
	}

	acct, _ := f.store.GetAccount(ctx, aliceID)
	if acct.Balance.Value() != 100 {
		t.Fatalf("deferred purchase must not move balance, got %d", acct.Balance.Value())
	}
	if acct.Arrears != 50 {
		t.Fatalf("expected arrears 50, got %d", acct.Arrears)
	}
	if len(acct.CreditedItems) != 2 {
		t.Fatalf("expected 2 credited items, got %d", len(acct.CreditedItems))
	}

	// Treasury stays empty until settlement.
	plat, _ := f.svc.GetPlatform(ctx, platformID)
	if !plat.Treasury.IsZero() {
		t.Fatalf("deferred purchase must not credit treasury, got %d", plat.Treasury.Value())
	}

	// Balance still gates purchases in deferred mode.
	bigItem := f.item(t, platformID, aliceID, 101)
	if _, err := f.svc.Purchase(ctx, aliceID, bigItem); !errors.Is(err, balance.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// Purchase records are still appended.
	recs, _ := f.svc.TransactionsForAccount(ctx, aliceID)
	if len(recs) != 3 { // deposit + two purchases
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestCreatePlatformValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.CreatePlatform(context.Background(), "  ", "owner"); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := f.svc.CreatePlatform(context.Background(), "name", ""); err == nil {
		t.Fatal("expected error for empty caller")
	}
}

func TestBridgeConservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")

	if _, err := f.svc.Deposit(ctx, aliceID, 70); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if got := f.bridge.NetCollected("alice-address"); got != 70 {
		t.Fatalf("expected bridge to hold 70 from alice, got %d", got)
	}
}

func TestDepositFailsWhenBridgeClosed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")

	f.bridge.Close()

	if _, err := f.svc.Deposit(ctx, aliceID, 10); !errors.Is(err, chain.ErrBridgeClosed) {
		t.Fatalf("expected ErrBridgeClosed, got %v", err)
	}

	acct, _ := f.store.GetAccount(ctx, aliceID)
	if !acct.Balance.IsZero() {
		t.Fatalf("failed deposit must not credit balance, got %d", acct.Balance.Value())
	}
	recs, _ := f.svc.TransactionsForAccount(ctx, aliceID)
	if len(recs) != 0 {
		t.Fatalf("failed deposit must not append a record, got %d", len(recs))
	}
}

func TestAuditorDetectsNoDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	platformID := f.platform(t, "owner-address")
	aliceID := f.account(t, platformID, "alice-address")
	itemID := f.item(t, platformID, aliceID, 25)

	if _, err := f.svc.Deposit(ctx, aliceID, 100); err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if _, err := f.svc.Purchase(ctx, aliceID, itemID); err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if _, err := f.svc.Withdraw(ctx, platformID, 10, "owner-address"); err != nil {
		t.Fatalf("withdraw: %v", err)
	}

	auditor := NewAuditor(f.store, f.store, f.store, nil, "")
	if drifted := auditor.RunOnce(ctx); drifted != 0 {
		t.Fatalf("expected no drift, got %d drifted platforms", drifted)
	}
}
