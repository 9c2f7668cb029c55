package postgres

import (
	"encoding/json"
	"time"

	"github.com/reelpay/ledger/internal/app/domain/account"
	"github.com/reelpay/ledger/internal/app/domain/balance"
	"github.com/reelpay/ledger/internal/app/domain/catalog"
	"github.com/reelpay/ledger/internal/app/domain/ledgertx"
	"github.com/reelpay/ledger/internal/app/domain/platform"
)

// Row models keep SQL concerns (db tags, JSON columns, nullable fields)
// out of the domain structs.

type platformRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	OwnerAddress string    `db:"owner_address"`
	Treasury     int64     `db:"treasury"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func (r platformRow) toDomain() platform.Platform {
	return platform.Platform{
		ID:           r.ID,
		Name:         r.Name,
		OwnerAddress: r.OwnerAddress,
		Treasury:     balance.New(r.Treasury),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

type accountRow struct {
	ID            string    `db:"id"`
	PlatformID    string    `db:"platform_id"`
	Address       string    `db:"address"`
	Balance       int64     `db:"balance"`
	Arrears       int64     `db:"arrears"`
	CreditedItems []byte    `db:"credited_items"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func (r accountRow) toDomain() (account.Account, error) {
	var credited []string
	if len(r.CreditedItems) > 0 {
		if err := json.Unmarshal(r.CreditedItems, &credited); err != nil {
			return account.Account{}, err
		}
	}
	return account.Account{
		ID:            r.ID,
		PlatformID:    r.PlatformID,
		Address:       r.Address,
		Balance:       balance.New(r.Balance),
		Arrears:       r.Arrears,
		CreditedItems: credited,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}, nil
}

func creditedItemsJSON(items []string) ([]byte, error) {
	if items == nil {
		items = []string{}
	}
	return json.Marshal(items)
}

type itemRow struct {
	ID         string    `db:"id"`
	PlatformID string    `db:"platform_id"`
	UploaderID string    `db:"uploader_id"`
	Title      string    `db:"title"`
	Price      int64     `db:"price"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r itemRow) toDomain() catalog.Item {
	return catalog.Item{
		ID:         r.ID,
		PlatformID: r.PlatformID,
		UploaderID: r.UploaderID,
		Title:      r.Title,
		Price:      r.Price,
		CreatedAt:  r.CreatedAt,
	}
}

type transactionRow struct {
	ID         string    `db:"id"`
	Kind       string    `db:"kind"`
	PlatformID string    `db:"platform_id"`
	AccountID  string    `db:"account_id"`
	ItemID     string    `db:"item_id"`
	Amount     int64     `db:"amount"`
	CreatedAt  time.Time `db:"created_at"`
}

func (r transactionRow) toDomain() ledgertx.Record {
	return ledgertx.Record{
		ID:         r.ID,
		Kind:       ledgertx.Kind(r.Kind),
		PlatformID: r.PlatformID,
		AccountID:  r.AccountID,
		ItemID:     r.ItemID,
		Amount:     r.Amount,
		CreatedAt:  r.CreatedAt,
	}
}
