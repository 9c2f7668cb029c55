// Package catalog implements item listing and lookup.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/reelpay/ledger/internal/app/domain/catalog"
	"github.com/reelpay/ledger/internal/app/storage"
	"github.com/reelpay/ledger/pkg/logger"
)

var (
	// ErrInvalidPrice is returned for negative prices, and for zero
	// prices unless free items are enabled.
	ErrInvalidPrice = errors.New("catalog: invalid price")
	// ErrItemNotFound is returned by lookups that miss.
	ErrItemNotFound = errors.New("catalog: item not found")
	// ErrTitleRequired is returned when the title is empty.
	ErrTitleRequired = errors.New("catalog: title is required")
	// ErrUploaderNotFound is returned when the uploader account does
	// not exist on the platform.
	ErrUploaderNotFound = errors.New("catalog: uploader account not found")
)

// Service manages the item catalog.
type Service struct {
	accounts  storage.AccountStore
	store     storage.CatalogStore
	log       *logger.Logger
	now       func() time.Time
	allowFree bool
}

// Option configures the service.
type Option func(*Service)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithFreeItems permits zero-priced items. Off by default: a listing
// must carry a positive price.
func WithFreeItems(allow bool) Option {
	return func(s *Service) { s.allowFree = allow }
}

// New constructs a catalog service.
func New(accounts storage.AccountStore, store storage.CatalogStore, log *logger.Logger, opts ...Option) *Service {
	if log == nil {
		log = logger.NewDefault("catalog")
	}
	s := &Service{
		accounts: accounts,
		store:    store,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register lists a new item on the uploader's platform.
func (s *Service) Register(ctx context.Context, platformID, uploaderID, title string, price int64) (catalog.Item, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return catalog.Item{}, ErrTitleRequired
	}
	if price < 0 || (price == 0 && !s.allowFree) {
		return catalog.Item{}, fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}

	uploader, err := s.accounts.GetAccount(ctx, uploaderID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Item{}, fmt.Errorf("%w: %s", ErrUploaderNotFound, uploaderID)
		}
		return catalog.Item{}, err
	}
	if uploader.PlatformID != platformID {
		return catalog.Item{}, fmt.Errorf("%w: %s", ErrUploaderNotFound, uploaderID)
	}

	created, err := s.store.CreateItem(ctx, catalog.Item{
		PlatformID: platformID,
		UploaderID: uploaderID,
		Title:      title,
		Price:      price,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return catalog.Item{}, err
	}

	s.log.Infof("item %s (%q, price %d) listed on platform %s", created.ID, title, price, platformID)
	return created, nil
}

// Get returns the item by ID.
func (s *Service) Get(ctx context.Context, id string) (catalog.Item, error) {
	it, err := s.store.GetItem(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return catalog.Item{}, fmt.Errorf("%w: %s", ErrItemNotFound, id)
		}
		return catalog.Item{}, err
	}
	return it, nil
}

// List returns all items on a platform.
func (s *Service) List(ctx context.Context, platformID string) ([]catalog.Item, error) {
	return s.store.ListItems(ctx, platformID)
}
