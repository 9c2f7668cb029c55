// Package ledgertx defines the append-only transaction log. Records are
// created exactly once per successful balance-moving operation and are
// never updated or deleted.
package ledgertx

import "time"

// Kind classifies a ledger record.
type Kind string

const (
	// KindPurchase records an account paying an item's price into the
	// platform treasury (or accruing it as arrears in deferred mode).
	KindPurchase Kind = "purchase"
	// KindDeposit records external value credited to an account.
	KindDeposit Kind = "deposit"
	// KindWithdrawal records treasury value released to the owner.
	KindWithdrawal Kind = "withdrawal"
)

// Record is one immutable ledger entry. ItemID is set for purchases only;
// AccountID is empty for withdrawals, which debit the treasury directly.
type Record struct {
	ID         string    `json:"id"`
	Kind       Kind      `json:"kind"`
	PlatformID string    `json:"platform_id"`
	AccountID  string    `json:"account_id,omitempty"`
	ItemID     string    `json:"item_id,omitempty"`
	Amount     int64     `json:"amount"`
	CreatedAt  time.Time `json:"created_at"`
}
