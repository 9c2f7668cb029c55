package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/domain/platform"
	"github.com/reelpay/ledger/internal/app/storage"
)

func TestCreateAccountDuplicateAddress(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, err := s.CreatePlatform(ctx, platform.Platform{Name: "p", OwnerAddress: "owner"})
	if err != nil {
		t.Fatalf("create platform: %v", err)
	}

	if _, err := s.CreateAccount(ctx, account.Account{PlatformID: p.ID, Address: "Alice"}); err != nil {
		t.Fatalf("create account: %v", err)
	}

	// Address matching is case-insensitive.
	if _, err := s.CreateAccount(ctx, account.Account{PlatformID: p.ID, Address: "alice"}); !errors.Is(err, storage.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	// Same address on another platform is fine.
	p2, _ := s.CreatePlatform(ctx, platform.Platform{Name: "q", OwnerAddress: "owner"})
	if _, err := s.CreateAccount(ctx, account.Account{PlatformID: p2.ID, Address: "alice"}); err != nil {
		t.Fatalf("create on second platform: %v", err)
	}
}

func TestGetAccountByAddress(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, _ := s.CreatePlatform(ctx, platform.Platform{Name: "p", OwnerAddress: "owner"})
	created, err := s.CreateAccount(ctx, account.Account{PlatformID: p.ID, Address: "Alice"})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}

	got, err := s.GetAccountByAddress(ctx, p.ID, "ALICE")
	if err != nil {
		t.Fatalf("get by address: %v", err)
	}
	if got.ID != created.ID {
		t.Fatalf("expected %s, got %s", created.ID, got.ID)
	}

	if _, err := s.GetAccountByAddress(ctx, p.ID, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAccountSnapshotsAreIsolated(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, _ := s.CreatePlatform(ctx, platform.Platform{Name: "p", OwnerAddress: "owner"})
	created, _ := s.CreateAccount(ctx, account.Account{PlatformID: p.ID, Address: "alice"})

	got, _ := s.GetAccount(ctx, created.ID)
	got.CreditedItems = append(got.CreditedItems, "item-1")
	if err := got.Balance.Deposit(999); err != nil {
		t.Fatalf("deposit on snapshot: %v", err)
	}

	// Mutating the returned snapshot must not change the stored account.
	stored, _ := s.GetAccount(ctx, created.ID)
	if !stored.Balance.IsZero() || len(stored.CreditedItems) != 0 {
		t.Fatalf("stored account mutated through snapshot: %+v", stored)
	}
}

func TestApplyEntryCommitsAtomically(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, _ := s.CreatePlatform(ctx, platform.Platform{Name: "p", OwnerAddress: "owner"})
	acct, _ := s.CreateAccount(ctx, account.Account{PlatformID: p.ID, Address: "alice"})

	if err := acct.Balance.Deposit(100); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	rec, err := s.ApplyEntry(ctx, storage.Entry{
		Account: &acct,
		Record: ledgertx.Record{
			Kind:       ledgertx.KindDeposit,
			PlatformID: p.ID,
			AccountID:  acct.ID,
			Amount:     100,
		},
	})
	if err != nil {
		t.Fatalf("apply entry: %v", err)
	}
	if rec.ID == "" {
		t.Fatal("expected record id to be assigned")
	}

	stored, _ := s.GetAccount(ctx, acct.ID)
	if stored.Balance.Value() != 100 {
		t.Fatalf("expected committed balance 100, got %d", stored.Balance.Value())
	}

	got, err := s.GetTransaction(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get transaction: %v", err)
	}
	if got.Kind != ledgertx.KindDeposit || got.Amount != 100 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestApplyEntryUnknownAccountFails(t *testing.T) {
	s := New()
	ctx := context.Background()

	missing := account.Account{ID: "ghost", PlatformID: "p"}
	_, err := s.ApplyEntry(ctx, storage.Entry{
		Account: &missing,
		Record:  ledgertx.Record{Kind: ledgertx.KindDeposit, PlatformID: "p", AccountID: "ghost", Amount: 1},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// Nothing was appended.
	recs, _ := s.ListTransactionsByPlatform(ctx, "p")
	if len(recs) != 0 {
		t.Fatalf("failed entry must not append a record, got %d", len(recs))
	}
}

func TestTransactionsPreserveAppendOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	p, _ := s.CreatePlatform(ctx, platform.Platform{Name: "p", OwnerAddress: "owner"})
	acct, _ := s.CreateAccount(ctx, account.Account{PlatformID: p.ID, Address: "alice"})

	amounts := []int64{5, 10, 15}
	for _, amount := range amounts {
		snapshot, _ := s.GetAccount(ctx, acct.ID)
		if err := snapshot.Balance.Deposit(amount); err != nil {
			t.Fatalf("deposit: %v", err)
		}
		if _, err := s.ApplyEntry(ctx, storage.Entry{
			Account: &snapshot,
			Record: ledgertx.Record{
				Kind:       ledgertx.KindDeposit,
				PlatformID: p.ID,
				AccountID:  acct.ID,
				Amount:     amount,
			},
		}); err != nil {
			t.Fatalf("apply entry: %v", err)
		}
	}

	recs, _ := s.ListTransactionsByAccount(ctx, acct.ID)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	for i, amount := range amounts {
		if recs[i].Amount != amount {
			t.Fatalf("record %d out of order: got %d want %d", i, recs[i].Amount, amount)
		}
	}
}
