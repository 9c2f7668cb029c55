// Package accounts implements the participant registry: one account per
// address per platform, created on registration and never deleted.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/storage"
	"github.com/reelpay/ledger/pkg/logger"
)

var (
	// ErrDuplicateAccount is returned when the address already has an
	// account on the platform. First registration wins.
	ErrDuplicateAccount = errors.New("accounts: address already registered")
	// ErrAccountNotFound is returned by lookups that miss.
	ErrAccountNotFound = errors.New("accounts: account not found")
	// ErrPlatformNotFound is returned when registering against an
	// unknown platform.
	ErrPlatformNotFound = errors.New("accounts: platform not found")
)

// Service manages account registration and lookup.
type Service struct {
	platforms storage.PlatformStore
	store     storage.AccountStore
	log       *logger.Logger
	now       func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs an account service.
func New(platforms storage.PlatformStore, store storage.AccountStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("accounts")
	}
	s := &Service{
		platforms: platforms,
		store:     store,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account for address on the platform with a zero
// balance. Registering an address twice fails and leaves the registry
// unchanged.
func (s *Service) Register(ctx context.Context, platformID, address string) (account.Account, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return account.Account{}, fmt.Errorf("accounts: address is required")
	}

	if _, err := s.platforms.GetPlatform(ctx, platformID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, fmt.Errorf("%w: %s", ErrPlatformNotFound, platformID)
		}
		return account.Account{}, err
	}

	created, err := s.store.CreateAccount(ctx, account.Account{
		PlatformID: platformID,
		Address:    address,
		CreatedAt:  s.now(),
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return account.Account{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, address)
		}
		return account.Account{}, err
	}

	s.log.Infof("account %s registered for %s on platform %s", created.ID, address, platformID)
	return created, nil
}

// Get returns the account by ID.
func (s *Service) Get(ctx context.Context, id string) (account.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
		}
		return account.Account{}, err
	}
	return acct, nil
}

// GetByAddress returns the account registered for address on a platform.
func (s *Service) GetByAddress(ctx context.Context, platformID, address string) (account.Account, error) {
	acct, err := s.store.GetAccountByAddress(ctx, platformID, strings.TrimSpace(address))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return account.Account{}, fmt.Errorf("%w: %s", ErrAccountNotFound, address)
		}
		return account.Account{}, err
	}
	return acct, nil
}

// List returns all accounts on a platform.
func (s *Service) List(ctx context.Context, platformID string) ([]account.Account, error) {
	return s.store.ListAccounts(ctx, platformID)
}
