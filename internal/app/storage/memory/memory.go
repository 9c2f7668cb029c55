package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/domain/catalog"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/domain/platform"
	"github.com/reelpay/ledger/internal/app/storage"
)

// Store is an in-memory implementation of the storage interfaces. It is
// safe for concurrent use and is primarily intended for tests and local
// development.
type Store struct {
	mu                sync.RWMutex
	nextID            int64
	platforms         map[string]platform.Platform
	accounts          map[string]account.Account
	accountsByAddress map[string]string // platformID + "\x00" + address -> accountID
	items             map[string]catalog.Item
	transactions      map[string]ledgertx.Record
	txOrder           []string
}

var _ storage.PlatformStore = (*Store)(nil)
var _ storage.AccountStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		nextID:            1,
		platforms:         make(map[string]platform.Platform),
		accounts:          make(map[string]account.Account),
		accountsByAddress: make(map[string]string),
		items:             make(map[string]catalog.Item),
		transactions:      make(map[string]ledgertx.Record),
	}
}

func (s *Store) nextIDLocked() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func addressKey(platformID, address string) string {
	return platformID + "\x00" + strings.ToLower(address)
}

// PlatformStore implementation ------------------------------------------------

func (s *Store) CreatePlatform(_ context.Context, p platform.Platform) (platform.Platform, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = s.nextIDLocked()
	} else if _, exists := s.platforms[p.ID]; exists {
		return platform.Platform{}, fmt.Errorf("platform %s: %w", p.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	s.platforms[p.ID] = p
	return p, nil
}

func (s *Store) GetPlatform(_ context.Context, id string) (platform.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.platforms[id]
	if !ok {
		return platform.Platform{}, fmt.Errorf("platform %s: %w", id, storage.ErrNotFound)
	}
	return p, nil
}

func (s *Store) ListPlatforms(_ context.Context) ([]platform.Platform, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]platform.Platform, 0, len(s.platforms))
	for _, p := range s.platforms {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// AccountStore implementation -------------------------------------------------

func (s *Store) CreateAccount(_ context.Context, acct account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := addressKey(acct.PlatformID, acct.Address)
	if _, exists := s.accountsByAddress[key]; exists {
		return account.Account{}, fmt.Errorf("address %s on platform %s: %w", acct.Address, acct.PlatformID, storage.ErrConflict)
	}

	if acct.ID == "" {
		acct.ID = s.nextIDLocked()
	} else if _, exists := s.accounts[acct.ID]; exists {
		return account.Account{}, fmt.Errorf("account %s: %w", acct.ID, storage.ErrConflict)
	}

	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = acct.CreatedAt
	acct.CreditedItems = append([]string(nil), acct.CreditedItems...)

	s.accounts[acct.ID] = acct
	s.accountsByAddress[key] = acct.ID
	return cloneAccount(acct), nil
}

func (s *Store) GetAccount(_ context.Context, id string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.accounts[id]
	if !ok {
		return account.Account{}, fmt.Errorf("account %s: %w", id, storage.ErrNotFound)
	}
	return cloneAccount(acct), nil
}

func (s *Store) GetAccountByAddress(_ context.Context, platformID, address string) (account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.accountsByAddress[addressKey(platformID, address)]
	if !ok {
		return account.Account{}, fmt.Errorf("address %s on platform %s: %w", address, platformID, storage.ErrNotFound)
	}
	return cloneAccount(s.accounts[id]), nil
}

func (s *Store) ListAccounts(_ context.Context, platformID string) ([]account.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]account.Account, 0)
	for _, acct := range s.accounts {
		if platformID == "" || acct.PlatformID == platformID {
			result = append(result, cloneAccount(acct))
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// CatalogStore implementation -------------------------------------------------

func (s *Store) CreateItem(_ context.Context, it catalog.Item) (catalog.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if it.ID == "" {
		it.ID = s.nextIDLocked()
	} else if _, exists := s.items[it.ID]; exists {
		return catalog.Item{}, fmt.Errorf("item %s: %w", it.ID, storage.ErrConflict)
	}

	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	s.items[it.ID] = it
	return it, nil
}

func (s *Store) GetItem(_ context.Context, id string) (catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	it, ok := s.items[id]
	if !ok {
		return catalog.Item{}, fmt.Errorf("item %s: %w", id, storage.ErrNotFound)
	}
	return it, nil
}

func (s *Store) ListItems(_ context.Context, platformID string) ([]catalog.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]catalog.Item, 0)
	for _, it := range s.items {
		if platformID == "" || it.PlatformID == platformID {
			result = append(result, it)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// TransactionStore implementation ---------------------------------------------

func (s *Store) GetTransaction(_ context.Context, id string) (ledgertx.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.transactions[id]
	if !ok {
		return ledgertx.Record{}, fmt.Errorf("transaction %s: %w", id, storage.ErrNotFound)
	}
	return rec, nil
}

func (s *Store) ListTransactionsByAccount(_ context.Context, accountID string) ([]ledgertx.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledgertx.Record, 0)
	for _, id := range s.txOrder {
		if rec := s.transactions[id]; rec.AccountID == accountID {
			result = append(result, rec)
		}
	}
	return result, nil
}

func (s *Store) ListTransactionsByPlatform(_ context.Context, platformID string) ([]ledgertx.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ledgertx.Record, 0)
	for _, id := range s.txOrder {
		if rec := s.transactions[id]; rec.PlatformID == platformID {
			result = append(result, rec)
		}
	}
	return result, nil
}

// LedgerStore implementation --------------------------------------------------

// ApplyEntry commits the account and platform snapshots and appends the
// record under a single lock, so no partial state is ever observable.
func (s *Store) ApplyEntry(_ context.Context, entry storage.Entry) (ledgertx.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.Account != nil {
		if _, ok := s.accounts[entry.Account.ID]; !ok {
			return ledgertx.Record{}, fmt.Errorf("account %s: %w", entry.Account.ID, storage.ErrNotFound)
		}
	}
	if entry.Platform != nil {
		if _, ok := s.platforms[entry.Platform.ID]; !ok {
			return ledgertx.Record{}, fmt.Errorf("platform %s: %w", entry.Platform.ID, storage.ErrNotFound)
		}
	}

	rec := entry.Record
	if rec.ID == "" {
		rec.ID = s.nextIDLocked()
	} else if _, exists := s.transactions[rec.ID]; exists {
		return ledgertx.Record{}, fmt.Errorf("transaction %s: %w", rec.ID, storage.ErrConflict)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	if entry.Account != nil {
		acct := cloneAccount(*entry.Account)
		acct.UpdatedAt = now
		s.accounts[acct.ID] = acct
	}
	if entry.Platform != nil {
		p := *entry.Platform
		p.UpdatedAt = now
		s.platforms[p.ID] = p
	}

	s.transactions[rec.ID] = rec
	s.txOrder = append(s.txOrder, rec.ID)
	return rec, nil
}

func cloneAccount(acct account.Account) account.Account {
	acct.CreditedItems = append([]string(nil), acct.CreditedItems...)
	return acct
}
