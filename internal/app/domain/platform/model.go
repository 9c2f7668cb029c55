// Package platform defines the aggregate root of the ledger: a content
// platform owning a treasury, an account registry, a catalog and a
// transaction log.
package platform

import (
	"time"

	"github.com/reelpay/ledger/internal/app/domain/balance"
)

// Platform is a single unit of consistency. Accounts, items and
// transactions belong to exactly one platform and are never coordinated
// across platforms.
type Platform struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	OwnerAddress string          `json:"owner_address"` // fixed at creation
	Treasury     balance.Balance `json:"treasury"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}
