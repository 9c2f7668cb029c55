package storage

import (
	"context"
	"errors"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/domain/catalog"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/domain/platform"
)

var (
	// ErrNotFound is returned by lookups that miss.
	ErrNotFound = errors.New("storage: not found")
	// ErrConflict is returned when a create collides with an existing
	// row (duplicate ID or duplicate account address on a platform).
	ErrConflict = errors.New("storage: conflict")
)

// PlatformStore persists platform records.
type PlatformStore interface {
	CreatePlatform(ctx context.Context, p platform.Platform) (platform.Platform, error)
	GetPlatform(ctx context.Context, id string) (platform.Platform, error)
	ListPlatforms(ctx context.Context) ([]platform.Platform, error)
}

// AccountStore persists account records. CreateAccount enforces the
// one-address-per-platform rule and returns ErrConflict on violation.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct account.Account) (account.Account, error)
	GetAccount(ctx context.Context, id string) (account.Account, error)
	GetAccountByAddress(ctx context.Context, platformID, address string) (account.Account, error)
	ListAccounts(ctx context.Context, platformID string) ([]account.Account, error)
}

// CatalogStore persists catalog items.
type CatalogStore interface {
	CreateItem(ctx context.Context, it catalog.Item) (catalog.Item, error)
	GetItem(ctx context.Context, id string) (catalog.Item, error)
	ListItems(ctx context.Context, platformID string) ([]catalog.Item, error)
}

// TransactionStore reads the append-only ledger log. Records are only
// ever written through LedgerStore.ApplyEntry.
type TransactionStore interface {
	GetTransaction(ctx context.Context, id string) (ledgertx.Record, error)
	ListTransactionsByAccount(ctx context.Context, accountID string) ([]ledgertx.Record, error)
	ListTransactionsByPlatform(ctx context.Context, platformID string) ([]ledgertx.Record, error)
}

// Entry describes one atomic ledger mutation: updated account and/or
// platform snapshots plus the record to append. A nil Account or
// Platform means that side is untouched.
type Entry struct {
	Account  *account.Account
	Platform *platform.Platform
	Record   ledgertx.Record
}

// LedgerStore applies balance-moving mutations. ApplyEntry persists the
// whole entry or none of it; a record ID collision yields ErrConflict.
type LedgerStore interface {
	ApplyEntry(ctx context.Context, entry Entry) (ledgertx.Record, error)
}
