// Package policy holds the stateless rules consulted before the ledger touches any state.
package policy

import (
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Scale is the number of fraction digits every amount is kept at.
const Scale = 2

// Ceilings per operation kind.
var (
	MaxDeposit    = decimal.NewFromInt(500_000)
	MaxWithdrawal = decimal.NewFromInt(50_000)
	MaxTransfer   = decimal.NewFromInt(100_000)
	MaxInterest   = decimal.NewFromInt(500_000)
)

// Ceiling returns the maximum amount allowed for a single operation of the given kind.
func Ceiling(kind domain.TransactionKind) (decimal.Decimal, bool) {
	switch kind {
	case domain.KindDeposit:
		return MaxDeposit, true
	case domain.KindWithdrawal:
		return MaxWithdrawal, true
	case domain.KindTransfer:
		return MaxTransfer, true
	case domain.KindInterest:
		return MaxInterest, true
	}

	return decimal.Zero, false
}

// AmountWithinCeiling reports whether amount does not exceed the ceiling of kind.
// Unknown kinds have no ceiling to be within.
func AmountWithinCeiling(kind domain.TransactionKind, amount decimal.Decimal) bool {
	ceiling, ok := Ceiling(kind)
	if !ok {
		return false
	}

	return amount.LessThanOrEqual(ceiling)
}

// AccountEligible reports whether the account may take part in a money movement.
func AccountEligible(a domain.Account) bool {
	return a.Status == domain.AccountStatusActive
}

// ValidAmount checks that amount is positive, has at most Scale fraction digits
// and is within the ceiling of kind.
func ValidAmount(kind domain.TransactionKind, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return domain.ErrInvalidAmount
	}

	if !amount.Equal(amount.Truncate(Scale)) {
		return domain.ErrInvalidAmount
	}

	if !AmountWithinCeiling(kind, amount) {
		return domain.ErrInvalidAmount
	}

	return nil
}

// ValidMovement checks the shape of the movement itself.
func ValidMovement(m domain.Movement) error {
	if t, ok := m.(domain.Transfer); ok && t.FromAccountID == t.ToAccountID {
		return domain.ErrSameAccount
	}

	return nil
}
