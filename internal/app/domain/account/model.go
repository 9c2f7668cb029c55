// Package account defines participant accounts registered on a platform.
package account

import (
	"time"

	"github.com/reelpay/ledger/internal/app/domain/balance"
)

// Account holds a participant's balance on one platform. The address is
// the participant's externally-authenticated identity; one address maps
// to at most one account per platform.
//
// Arrears and CreditedItems are only populated when the platform runs in
// deferred settlement mode: Arrears is the total value owed for content
// consumed on credit, and CreditedItems lists the item IDs awaiting
// settlement. The sum of the credited items' purchase prices always
// equals Arrears.
type Account struct {
	ID            string          `json:"id"`
	PlatformID    string          `json:"platform_id"`
	Address       string          `json:"address"`
	Balance       balance.Balance `json:"balance"`
	Arrears       int64           `json:"arrears,omitempty"`
	CreditedItems []string        `json:"credited_items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
