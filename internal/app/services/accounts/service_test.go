package accounts

import (
	"context"
	"errors"
	"testing"

	"github.com/reelpay/ledger/internal/app/domain/platform"
	"github.com/reelpay/ledger/internal/app/storage/memory"
)

func newTestPlatform(t *testing.T, store *memory.Store) platform.Platform {
	t.Helper()
	p, err := store.CreatePlatform(context.Background(), platform.Platform{
		Name:         "reelpay",
		OwnerAddress: "owner-address",
	})
	if err != nil {
		t.Fatalf("create platform: %v", err)
	}
	return p
}

func TestRegister(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	p := newTestPlatform(t, store)

	acct, err := svc.Register(context.Background(), p.ID, "alice-address")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if acct.ID == "" {
		t.Fatal("expected id to be generated")
	}
	if !acct.Balance.IsZero() {
		t.Fatalf("new account must start at zero, got %d", acct.Balance.Value())
	}

	list, err := svc.List(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 account, got %d", len(list))
	}
}

func TestRegisterDuplicateAddress(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	p := newTestPlatform(t, store)

	first, err := svc.Register(context.Background(), p.ID, "alice-address")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Register(context.Background(), p.ID, "alice-address"); !errors.Is(err, ErrDuplicateAccount) {
		t.Fatalf("expected ErrDuplicateAccount, got %v", err)
	}

	// First registration stands.
	got, err := svc.GetByAddress(context.Background(), p.ID, "alice-address")
	if err != nil {
		t.Fatalf("get by address: %v", err)
	}
	if got.ID != first.ID {
		t.Fatalf("expected original account %s, got %s", first.ID, got.ID)
	}
}

func TestRegisterSameAddressDifferentPlatforms(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	p1 := newTestPlatform(t, store)
	p2, err := store.CreatePlatform(context.Background(), platform.Platform{
		Name:         "other",
		OwnerAddress: "other-owner",
	})
	if err != nil {
		t.Fatalf("create platform: %v", err)
	}

	if _, err := svc.Register(context.Background(), p1.ID, "alice-address"); err != nil {
		t.Fatalf("register on p1: %v", err)
	}
	if _, err := svc.Register(context.Background(), p2.ID, "alice-address"); err != nil {
		t.Fatalf("register on p2 should succeed: %v", err)
	}
}

func TestRegisterUnknownPlatform(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	if _, err := svc.Register(context.Background(), "missing", "alice-address"); !errors.Is(err, ErrPlatformNotFound) {
		t.Fatalf("expected ErrPlatformNotFound, got %v", err)
	}
}

func TestRegisterEmptyAddress(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)
	p := newTestPlatform(t, store)

	if _, err := svc.Register(context.Background(), p.ID, "   "); err == nil {
		t.Fatal("expected error for empty address")
	}
}

func TestGetMissing(t *testing.T) {
	store := memory.New()
	svc := New(store, store, nil)

	if _, err := svc.Get(context.Background(), "missing"); !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}
