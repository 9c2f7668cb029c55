// Package ledger implements the platform ledger: platform creation,
// account deposits, purchases and owner withdrawals. Every mutating
// operation on one platform is serialized and commits atomically; a
// failed operation leaves all state untouched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/reelpay/ledger/internal/app/domain/balance"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/domain/platform"
	"github.com/reelpay/ledger/internal/app/metrics"
	"github.com/reelpay/ledger/internal/app/storage"
	"github.com/reelpay/ledger/internal/chain"
	"github.com/reelpay/ledger/pkg/logger"
)

var (
	// ErrNotOwner is returned when a caller other than the platform
	// owner attempts an owner-restricted operation.
	ErrNotOwner = errors.New("ledger: caller is not the platform owner")
	// ErrInsufficientBalance is returned when a withdrawal exceeds the
	// treasury.
	ErrInsufficientBalance = errors.New("ledger: insufficient treasury balance")
	// ErrPlatformNotFound is returned by platform lookups that miss.
	ErrPlatformNotFound = errors.New("ledger: platform not found")
	// ErrAccountNotFound is returned by account lookups that miss.
	ErrAccountNotFound = errors.New("ledger: account not found")
	// ErrItemNotFound is returned when the purchased item does not
	// exist on the account's platform.
	ErrItemNotFound = errors.New("ledger: item not found")
	// ErrTransactionNotFound is returned by record lookups that miss.
	ErrTransactionNotFound = errors.New("ledger: transaction not found")
)

// SettlementMode selects how purchases move value.
type SettlementMode string

const (
	// SettleImmediate debits the buyer and credits the treasury at
	// purchase time. Default.
	SettleImmediate SettlementMode = "immediate"
	// SettleDeferred records the price as arrears owed by the buyer;
	// no value moves at purchase time.
	SettleDeferred SettlementMode = "deferred"
)

// ParseSettlementMode validates a configured mode string.
func ParseSettlementMode(raw string) (SettlementMode, error) {
	switch SettlementMode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", SettleImmediate:
		return SettleImmediate, nil
	case SettleDeferred:
		return SettleDeferred, nil
	default:
		return "", fmt.Errorf("ledger: unknown settlement mode %q", raw)
	}
}

// Service orchestrates all balance-moving operations.
type Service struct {
	platforms storage.PlatformStore
	accounts  storage.AccountStore
	items     storage.CatalogStore
	txs       storage.TransactionStore
	ledger    storage.LedgerStore
	bridge    chain.Bridge
	log       *logger.Logger
	mode      SettlementMode
	now       func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithSettlementMode selects the purchase settlement policy.
func WithSettlementMode(mode SettlementMode) Option {
	return func(s *Service) { s.mode = mode }
}

// WithBridge sets the external token bridge.
func WithBridge(bridge chain.Bridge) Option {
	return func(s *Service) { s.bridge = bridge }
}

// New constructs the ledger service. The bridge defaults to an
// in-process simulator.
func New(
	platforms storage.PlatformStore,
	accounts storage.AccountStore,
	items storage.CatalogStore,
	txs storage.TransactionStore,
	ledgerStore storage.LedgerStore,
	log *logger.Logger,
	opts ...Option,
) *Service {
	if log == nil {
		log = logger.NewDefault("ledger")
	}
	s := &Service{
		platforms: platforms,
		accounts:  accounts,
		items:     items,
		txs:       txs,
		ledger:    ledgerStore,
		log:       log,
		mode:      SettleImmediate,
		now:       func() time.Time { return time.Now().UTC() },
		locks:     make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.bridge == nil {
		s.bridge = chain.NewSimulator(log)
	}
	return s
}

// Mode reports the configured settlement mode.
func (s *Service) Mode() SettlementMode { return s.mode }

// platformLock returns the mutex serializing operations on one platform.
func (s *Service) platformLock(platformID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[platformID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[platformID] = l
	}
	return l
}

// CreatePlatform creates a platform owned by the caller with an empty
// treasury. The owner is fixed for the platform's lifetime.
func (s *Service) CreatePlatform(ctx context.Context, name, caller string) (platform.Platform, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return platform.Platform{}, fmt.Errorf("ledger: platform name is required")
	}
	caller = strings.TrimSpace(caller)
	if caller == "" {
		return platform.Platform{}, fmt.Errorf("ledger: caller identity is required")
	}

	created, err := s.platforms.CreatePlatform(ctx, platform.Platform{
		Name:         name,
		OwnerAddress: caller,
		CreatedAt:    s.now(),
	})
	if err != nil {
		return platform.Platform{}, err
	}

	s.log.Infof("platform %s (%q) created, owner %s", created.ID, name, caller)
	return created, nil
}

// GetPlatform returns the platform by ID.
func (s *Service) GetPlatform(ctx context.Context, id string) (platform.Platform, error) {
	p, err := s.platforms.GetPlatform(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return platform.Platform{}, fmt.Errorf("%w: %s", ErrPlatformNotFound, id)
		}
		return platform.Platform{}, err
	}
	return p, nil
}

// ListPlatforms returns all platforms.
func (s *Service) ListPlatforms(ctx context.Context) ([]platform.Platform, error) {
	return s.platforms.ListPlatforms(ctx)
}

// Deposit pulls amount of external value through the bridge and credits
// the account's balance. A deposit record is appended to the log.
func (s *Service) Deposit(ctx context.Context, accountID string, amount int64) (ledgertx.Record, error) {
	if amount < 0 {
		return ledgertx.Record{}, balance.ErrNegativeAmount
	}

	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return ledgertx.Record{}, s.accountErr(err, accountID)
	}

	lock := s.platformLock(acct.PlatformID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock so the snapshot we commit is current.
	acct, err = s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return ledgertx.Record{}, s.accountErr(err, accountID)
	}

	if err := acct.Balance.Deposit(amount); err != nil {
		metrics.RecordLedgerOp(string(ledgertx.KindDeposit), "rejected")
		return ledgertx.Record{}, err
	}

	if err := s.bridge.Collect(ctx, acct.Address, amount); err != nil {
		metrics.RecordLedgerOp(string(ledgertx.KindDeposit), "error")
		return ledgertx.Record{}, fmt.Errorf("collect external value: %w", err)
	}

	rec, err := s.ledger.ApplyEntry(ctx, storage.Entry{
		Account: &acct,
		Record: ledgertx.Record{
			Kind:       ledgertx.KindDeposit,
			PlatformID: acct.PlatformID,
			AccountID:  acct.ID,
			Amount:     amount,
			CreatedAt:  s.now(),
		},
	})
	if err != nil {
		// The external value was already collected; push it back so
		// the failed operation is a no-op on both sides.
		if releaseErr := s.bridge.Release(ctx, acct.Address, amount); releaseErr != nil {
			s.log.WithError(releaseErr).Errorf("refund of failed deposit for account %s", acct.ID)
		}
		metrics.RecordLedgerOp(string(ledgertx.KindDeposit), "error")
		return ledgertx.Record{}, err
	}

	metrics.RecordLedgerOp(string(ledgertx.KindDeposit), "ok")
	metrics.ObserveLedgerAmount(string(ledgertx.KindDeposit), amount)
	s.log.Infof("deposit %d to account %s (tx %s)", amount, acct.ID, rec.ID)
	return rec, nil
}

// Purchase charges the account for the item and appends exactly one
// purchase record. In immediate mode the price moves from the account
// balance to the platform treasury; in deferred mode it accrues as
// arrears. Validation happens before any state changes, and the commit
// is a single atomic store operation.
func (s *Service) Purchase(ctx context.Context, accountID, itemID string) (ledgertx.Record, error) {
	acct, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return ledgertx.Record{}, s.accountErr(err, accountID)
	}

	lock := s.platformLock(acct.PlatformID)
	lock.Lock()
	defer lock.Unlock()

	acct, err = s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return ledgertx.Record{}, s.accountErr(err, accountID)
	}

	item, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ledgertx.Record{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
		}
		return ledgertx.Record{}, err
	}
	if item.PlatformID != acct.PlatformID {
		return ledgertx.Record{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
	}

	plat, err := s.platforms.GetPlatform(ctx, acct.PlatformID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ledgertx.Record{}, fmt.Errorf("%w: %s", ErrPlatformNotFound, acct.PlatformID)
		}
		return ledgertx.Record{}, err
	}

	entry := storage.Entry{
		Account: &acct,
		Record: ledgertx.Record{
			Kind:       ledgertx.KindPurchase,
			PlatformID: plat.ID,
			AccountID:  acct.ID,
			ItemID:     item.ID,
			Amount:     item.Price,
			CreatedAt:  s.now(),
		},
	}

	switch s.mode {
	case SettleDeferred:
		if acct.Balance.Value() < item.Price {
			metrics.RecordLedgerOp(string(ledgertx.KindPurchase), "rejected")
			return ledgertx.Record{}, fmt.Errorf("%w: have %d, need %d", balance.ErrInsufficientFunds, acct.Balance.Value(), item.Price)
		}
		if acct.Arrears > math.MaxInt64-item.Price {
			metrics.RecordLedgerOp(string(ledgertx.KindPurchase), "rejected")
			return ledgertx.Record{}, balance.ErrOverflow
		}
		acct.Arrears += item.Price
		acct.CreditedItems = append(acct.CreditedItems, item.ID)
	default: // immediate
		if err := balance.Transfer(&acct.Balance, &plat.Treasury, item.Price); err != nil {
			metrics.RecordLedgerOp(string(ledgertx.KindPurchase), "rejected")
			return ledgertx.Record{}, err
		}
		entry.Platform = &plat
	}

	rec, err := s.ledger.ApplyEntry(ctx, entry)
	if err != nil {
		metrics.RecordLedgerOp(string(ledgertx.KindPurchase), "error")
		return ledgertx.Record{}, err
	}

	metrics.RecordLedgerOp(string(ledgertx.KindPurchase), "ok")
	metrics.ObserveLedgerAmount(string(ledgertx.KindPurchase), item.Price)
	s.log.Infof("account %s purchased item %s for %d (tx %s, mode %s)", acct.ID, item.ID, item.Price, rec.ID, s.mode)
	return rec, nil
}

// Withdraw debits the treasury and releases the value to the owner
// through the bridge. Only the platform owner may withdraw.
func (s *Service) Withdraw(ctx context.Context, platformID string, amount int64, caller string) (ledgertx.Record, error) {
	if amount < 0 {
		return ledgertx.Record{}, balance.ErrNegativeAmount
	}

	lock := s.platformLock(platformID)
	lock.Lock()
	defer lock.Unlock()

	plat, err := s.platforms.GetPlatform(ctx, platformID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ledgertx.Record{}, fmt.Errorf("%w: %s", ErrPlatformNotFound, platformID)
		}
		return ledgertx.Record{}, err
	}

	if caller != plat.OwnerAddress {
		metrics.RecordLedgerOp(string(ledgertx.KindWithdrawal), "denied")
		return ledgertx.Record{}, fmt.Errorf("%w: %s", ErrNotOwner, caller)
	}

	funds, err := plat.Treasury.Withdraw(amount)
	if err != nil {
		if errors.Is(err, balance.ErrInsufficientFunds) {
			metrics.RecordLedgerOp(string(ledgertx.KindWithdrawal), "rejected")
			return ledgertx.Record{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientBalance, plat.Treasury.Value(), amount)
		}
		return ledgertx.Record{}, err
	}

	rec, err := s.ledger.ApplyEntry(ctx, storage.Entry{
		Platform: &plat,
		Record: ledgertx.Record{
			Kind:       ledgertx.KindWithdrawal,
			PlatformID: plat.ID,
			Amount:     funds.Amount(),
			CreatedAt:  s.now(),
		},
	})
	if err != nil {
		metrics.RecordLedgerOp(string(ledgertx.KindWithdrawal), "error")
		return ledgertx.Record{}, err
	}

	if err := s.bridge.Release(ctx, plat.OwnerAddress, funds.Amount()); err != nil {
		// The debit is committed but the value never left. Restore the
		// treasury with a compensating deposit entry so no value is
		// destroyed.
		plat.Treasury.Deposit(funds.Amount()) //nolint:errcheck // restoring a just-withdrawn amount cannot overflow
		if _, compErr := s.ledger.ApplyEntry(ctx, storage.Entry{
			Platform: &plat,
			Record: ledgertx.Record{
				Kind:       ledgertx.KindDeposit,
				PlatformID: plat.ID,
				Amount:     funds.Amount(),
				CreatedAt:  s.now(),
			},
		}); compErr != nil {
			s.log.WithError(compErr).Errorf("restore treasury after failed release on platform %s", plat.ID)
		}
		metrics.RecordLedgerOp(string(ledgertx.KindWithdrawal), "error")
		return ledgertx.Record{}, fmt.Errorf("release external value: %w", err)
	}

	metrics.RecordLedgerOp(string(ledgertx.KindWithdrawal), "ok")
	metrics.ObserveLedgerAmount(string(ledgertx.KindWithdrawal), funds.Amount())
	s.log.Infof("owner withdrew %d from platform %s (tx %s)", funds.Amount(), plat.ID, rec.ID)
	return rec, nil
}

// GetTransaction returns one ledger record.
func (s *Service) GetTransaction(ctx context.Context, id string) (ledgertx.Record, error) {
	rec, err := s.txs.GetTransaction(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return ledgertx.Record{}, fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
		}
		return ledgertx.Record{}, err
	}
	return rec, nil
}

// TransactionsForAccount returns the account's records in append order.
func (s *Service) TransactionsForAccount(ctx context.Context, accountID string) ([]ledgertx.Record, error) {
	return s.txs.ListTransactionsByAccount(ctx, accountID)
}

// TransactionsForPlatform returns the platform's records in append order.
func (s *Service) TransactionsForPlatform(ctx context.Context, platformID string) ([]ledgertx.Record, error) {
	return s.txs.ListTransactionsByPlatform(ctx, platformID)
}

func (s *Service) accountErr(err error, id string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	return err
}
