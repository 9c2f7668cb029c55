// Package balance implements the non-negative token quantity every other
// ledger component mutates. All arithmetic is overflow-checked; a Balance
// can never be observed negative.
package balance

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInsufficientFunds is returned when a withdrawal exceeds the
	// stored value.
	ErrInsufficientFunds = errors.New("balance: insufficient funds")
	// ErrOverflow is returned when a deposit would exceed the
	// representable range instead of wrapping.
	ErrOverflow = errors.New("balance: amount overflow")
	// ErrNegativeAmount is returned when an operation is given a
	// negative amount.
	ErrNegativeAmount = errors.New("balance: negative amount")
)

// Balance holds a non-negative amount in the smallest token denomination.
// The zero value is an empty balance ready for use.
type Balance struct {
	value int64
}

// New returns a balance holding the given non-negative value. Negative
// input is clamped to zero; stores use it to rehydrate persisted rows.
func New(value int64) Balance {
	if value < 0 {
		value = 0
	}
	return Balance{value: value}
}

// Value reports the stored amount.
func (b Balance) Value() int64 { return b.value }

// IsZero reports whether the balance is empty.
func (b Balance) IsZero() bool { return b.value == 0 }

// Deposit increases the stored value by amount.
func (b *Balance) Deposit(amount int64) error {
	if amount < 0 {
		return ErrNegativeAmount
	}
	if b.value > math.MaxInt64-amount {
		return ErrOverflow
	}
	b.value += amount
	return nil
}

// Withdraw decreases the stored value by amount and returns the withdrawn
// funds as a transferable unit.
func (b *Balance) Withdraw(amount int64) (Funds, error) {
	if amount < 0 {
		return Funds{}, ErrNegativeAmount
	}
	if b.value < amount {
		return Funds{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFunds, b.value, amount)
	}
	b.value -= amount
	return Funds{amount: amount}, nil
}

// DepositFunds absorbs a previously withdrawn unit.
func (b *Balance) DepositFunds(f Funds) error {
	return b.Deposit(f.amount)
}

// Transfer moves amount from src to dst. Either both halves happen or
// neither does: a deposit overflow returns the withdrawn funds to src.
func Transfer(src, dst *Balance, amount int64) error {
	funds, err := src.Withdraw(amount)
	if err != nil {
		return err
	}
	if err := dst.DepositFunds(funds); err != nil {
		src.value += funds.amount
		return err
	}
	return nil
}

// Funds is a transferable unit produced by a withdrawal. It carries the
// withdrawn amount out of a balance without exposing mutation.
type Funds struct {
	amount int64
}

// Amount reports the carried value.
func (f Funds) Amount() int64 { return f.amount }

// MarshalJSON encodes the balance as a bare integer.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.value)
}

// UnmarshalJSON decodes a bare integer, rejecting negative values.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var value int64
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	if value < 0 {
		return ErrNegativeAmount
	}
	b.value = value
	return nil
}
