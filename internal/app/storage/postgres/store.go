package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/domain/catalog"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/domain/platform"
	"github.com/reelpay/ledger/internal/app/storage"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sqlx.DB
}

var _ storage.PlatformStore = (*Store)(nil)
var _ storage.AccountStore = (*Store)(nil)
var _ storage.CatalogStore = (*Store)(nil)
var _ storage.TransactionStore = (*Store)(nil)
var _ storage.LedgerStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const (
	uniqueViolation = "23505"
	checkViolation  = "23514"
)

func translateError(err error, entity, id string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, storage.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case uniqueViolation:
			return fmt.Errorf("%s %s: %w", entity, id, storage.ErrConflict)
		case checkViolation:
			return fmt.Errorf("%s %s: balance constraint: %w", entity, id, storage.ErrConflict)
		}
	}
	return err
}

// --- PlatformStore -----------------------------------------------------------

func (s *Store) CreatePlatform(ctx context.Context, p platform.Platform) (platform.Platform, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = p.CreatedAt

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO platforms (id, name, owner_address, treasury, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, p.ID, p.Name, p.OwnerAddress, p.Treasury.Value(), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return platform.Platform{}, translateError(err, "platform", p.ID)
	}
	return p, nil
}

func (s *Store) GetPlatform(ctx context.Context, id string) (platform.Platform, error) {
	var row platformRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, name, owner_address, treasury, created_at, updated_at
		FROM platforms WHERE id = $1
	`, id)
	if err != nil {
		return platform.Platform{}, translateError(err, "platform", id)
	}
	return row.toDomain(), nil
}

func (s *Store) ListPlatforms(ctx context.Context) ([]platform.Platform, error) {
	var rows []platformRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, name, owner_address, treasury, created_at, updated_at
		FROM platforms ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	result := make([]platform.Platform, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- AccountStore ------------------------------------------------------------

func (s *Store) CreateAccount(ctx context.Context, acct account.Account) (account.Account, error) {
	if acct.ID == "" {
		acct.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = acct.CreatedAt

	credited, err := creditedItemsJSON(acct.CreditedItems)
	if err != nil {
		return account.Account{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, platform_id, address, balance, arrears, credited_items, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, acct.ID, acct.PlatformID, acct.Address, acct.Balance.Value(), acct.Arrears, credited, acct.CreatedAt, acct.UpdatedAt)
	if err != nil {
		return account.Account{}, translateError(err, "account", acct.Address)
	}
	return acct, nil
}

func (s *Store) GetAccount(ctx context.Context, id string) (account.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, platform_id, address, balance, arrears, credited_items, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id)
	if err != nil {
		return account.Account{}, translateError(err, "account", id)
	}
	return row.toDomain()
}

func (s *Store) GetAccountByAddress(ctx context.Context, platformID, address string) (account.Account, error) {
	var row accountRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, platform_id, address, balance, arrears, credited_items, created_at, updated_at
		FROM accounts WHERE platform_id = $1 AND lower(address) = lower($2)
	`, platformID, address)
	if err != nil {
		return account.Account{}, translateError(err, "account", address)
	}
	return row.toDomain()
}

func (s *Store) ListAccounts(ctx context.Context, platformID string) ([]account.Account, error) {
	var rows []accountRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, platform_id, address, balance, arrears, credited_items, created_at, updated_at
		FROM accounts WHERE platform_id = $1 ORDER BY created_at, id
	`, platformID)
	if err != nil {
		return nil, err
	}
	result := make([]account.Account, 0, len(rows))
	for _, row := range rows {
		acct, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		result = append(result, acct)
	}
	return result, nil
}

// --- CatalogStore ------------------------------------------------------------

func (s *Store) CreateItem(ctx context.Context, it catalog.Item) (catalog.Item, error) {
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO items (id, platform_id, uploader_id, title, price, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, it.ID, it.PlatformID, it.UploaderID, it.Title, it.Price, it.CreatedAt)
	if err != nil {
		return catalog.Item{}, translateError(err, "item", it.ID)
	}
	return it, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (catalog.Item, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, platform_id, uploader_id, title, price, created_at
		FROM items WHERE id = $1
	`, id)
	if err != nil {
		return catalog.Item{}, translateError(err, "item", id)
	}
	return row.toDomain(), nil
}

func (s *Store) ListItems(ctx context.Context, platformID string) ([]catalog.Item, error) {
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, platform_id, uploader_id, title, price, created_at
		FROM items WHERE platform_id = $1 ORDER BY created_at, id
	`, platformID)
	if err != nil {
		return nil, err
	}
	result := make([]catalog.Item, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- TransactionStore --------------------------------------------------------

func (s *Store) GetTransaction(ctx context.Context, id string) (ledgertx.Record, error) {
	var row transactionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, kind, platform_id, account_id, item_id, amount, created_at
		FROM transactions WHERE id = $1
	`, id)
	if err != nil {
		return ledgertx.Record{}, translateError(err, "transaction", id)
	}
	return row.toDomain(), nil
}

func (s *Store) ListTransactionsByAccount(ctx context.Context, accountID string) ([]ledgertx.Record, error) {
	return s.listTransactions(ctx, `account_id = $1`, accountID)
}

func (s *Store) ListTransactionsByPlatform(ctx context.Context, platformID string) ([]ledgertx.Record, error) {
	return s.listTransactions(ctx, `platform_id = $1`, platformID)
}

func (s *Store) listTransactions(ctx context.Context, where string, arg string) ([]ledgertx.Record, error) {
	var rows []transactionRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, kind, platform_id, account_id, item_id, amount, created_at
		FROM transactions WHERE `+where+` ORDER BY created_at, id
	`, arg)
	if err != nil {
		return nil, err
	}
	result := make([]ledgertx.Record, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.toDomain())
	}
	return result, nil
}

// --- LedgerStore -------------------------------------------------------------

// ApplyEntry persists the whole entry inside one SQL transaction. The
// CHECK constraints on balance columns reject any snapshot that would go
// negative, so a racing writer can never push a balance below zero.
func (s *Store) ApplyEntry(ctx context.Context, entry storage.Entry) (ledgertx.Record, error) {
	rec := entry.Record
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return ledgertx.Record{}, err
	}
	defer tx.Rollback() //nolint:errcheck

	if entry.Account != nil {
		credited, err := creditedItemsJSON(entry.Account.CreditedItems)
		if err != nil {
			return ledgertx.Record{}, err
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE accounts
			SET balance = $2, arrears = $3, credited_items = $4, updated_at = $5
			WHERE id = $1
		`, entry.Account.ID, entry.Account.Balance.Value(), entry.Account.Arrears, credited, now)
		if err != nil {
			return ledgertx.Record{}, translateError(err, "account", entry.Account.ID)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ledgertx.Record{}, fmt.Errorf("account %s: %w", entry.Account.ID, storage.ErrNotFound)
		}
	}

	if entry.Platform != nil {
		res, err := tx.ExecContext(ctx, `
			UPDATE platforms SET treasury = $2, updated_at = $3 WHERE id = $1
		`, entry.Platform.ID, entry.Platform.Treasury.Value(), now)
		if err != nil {
			return ledgertx.Record{}, translateError(err, "platform", entry.Platform.ID)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ledgertx.Record{}, fmt.Errorf("platform %s: %w", entry.Platform.ID, storage.ErrNotFound)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (id, kind, platform_id, account_id, item_id, amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, string(rec.Kind), rec.PlatformID, rec.AccountID, rec.ItemID, rec.Amount, rec.CreatedAt)
	if err != nil {
		return ledgertx.Record{}, translateError(err, "transaction", rec.ID)
	}

	if err := tx.Commit(); err != nil {
		return ledgertx.Record{}, err
	}
	return rec, nil
}
