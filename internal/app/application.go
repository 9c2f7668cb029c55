package app

import (
	"context"
	"fmt"
	"time"

	"github.com/reelpay/ledger/internal/app/services/accounts"
	catalogsvc "github.com/reelpay/ledger/internal/app/services/catalog"
	ledgersvc "github.com/reelpay/ledger/internal/app/services/ledger"
	"github.com/reelpay/ledger/internal/app/storage"
	"github.com/reelpay/ledger/internal/app/storage/memory"
	"github.com/reelpay/ledger/internal/app/system"
	"github.com/reelpay/ledger/internal/chain"
	"github.com/reelpay/ledger/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Platforms    storage.PlatformStore
	Accounts     storage.AccountStore
	Catalog      storage.CatalogStore
	Transactions storage.TransactionStore
	Ledger       storage.LedgerStore
}

// Option adjusts application construction.
type Option func(*settings)

type settings struct {
	settlementMode ledgersvc.SettlementMode
	allowFree      bool
	bridge         chain.Bridge
	auditSchedule  string
	now            func() time.Time
}

// WithSettlementMode selects how purchases settle into the treasury.
func WithSettlementMode(mode ledgersvc.SettlementMode) Option {
	return func(s *settings) { s.settlementMode = mode }
}

// WithFreeItems permits zero-priced catalog items.
func WithFreeItems(allow bool) Option {
	return func(s *settings) { s.allowFree = allow }
}

// WithBridge replaces the token bridge used for deposits and withdrawals.
func WithBridge(bridge chain.Bridge) Option {
	return func(s *settings) { s.bridge = bridge }
}

// WithAuditSchedule sets the cron schedule of the conservation auditor.
func WithAuditSchedule(schedule string) Option {
	return func(s *settings) { s.auditSchedule = schedule }
}

// WithClock overrides the timestamp source of every service.
func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Accounts *accounts.Service
	Catalog  *catalogsvc.Service
	Ledger   *ledgersvc.Service
	Auditor  *ledgersvc.Auditor
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, log *logger.Logger, opts ...Option) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}

	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}

	mem := memory.New()
	if stores.Platforms == nil {
		stores.Platforms = mem
	}
	if stores.Accounts == nil {
		stores.Accounts = mem
	}
	if stores.Catalog == nil {
		stores.Catalog = mem
	}
	if stores.Transactions == nil {
		stores.Transactions = mem
	}
	if stores.Ledger == nil {
		stores.Ledger = mem
	}

	manager := system.NewManager()

	var acctOpts []accounts.Option
	var catOpts []catalogsvc.Option
	var ledgerOpts []ledgersvc.Option
	if cfg.settlementMode != "" {
		ledgerOpts = append(ledgerOpts, ledgersvc.WithSettlementMode(cfg.settlementMode))
	}
	if cfg.now != nil {
		acctOpts = append(acctOpts, accounts.WithClock(cfg.now))
		catOpts = append(catOpts, catalogsvc.WithClock(cfg.now))
		ledgerOpts = append(ledgerOpts, ledgersvc.WithClock(cfg.now))
	}
	if cfg.allowFree {
		catOpts = append(catOpts, catalogsvc.WithFreeItems(true))
	}
	if cfg.bridge != nil {
		ledgerOpts = append(ledgerOpts, ledgersvc.WithBridge(cfg.bridge))
	}

	acctService := accounts.New(stores.Platforms, stores.Accounts, log, acctOpts...)
	catService := catalogsvc.New(stores.Accounts, stores.Catalog, log, catOpts...)
	ledgerService := ledgersvc.New(stores.Platforms, stores.Accounts, stores.Catalog, stores.Transactions, stores.Ledger, log, ledgerOpts...)

	for _, name := range []string{"accounts", "catalog", "ledger"} {
		if err := manager.Register(system.NoopService{ServiceName: name}); err != nil {
			return nil, fmt.Errorf("register %s service: %w", name, err)
		}
	}

	auditor := ledgersvc.NewAuditor(stores.Platforms, stores.Accounts, stores.Transactions, log, cfg.auditSchedule)
	if err := manager.Register(auditor); err != nil {
		return nil, fmt.Errorf("register %s: %w", auditor.Name(), err)
	}

	return &Application{
		manager:  manager,
		log:      log,
		Accounts: acctService,
		Catalog:  catService,
		Ledger:   ledgerService,
		Auditor:  auditor,
	}, nil
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(service system.Service) error {
	return a.manager.Register(service)
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
