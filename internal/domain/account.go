// Package domain provides definitions of all ledger entities.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind classifies accounts.
type AccountKind string

// Supported account kinds.
const (
	AccountKindSavings  AccountKind = "SAVINGS"
	AccountKindChecking AccountKind = "CHECKING"
	AccountKindBusiness AccountKind = "BUSINESS"
)

// AccountKinds holds all the supported account kinds.
var AccountKinds = []AccountKind{
	AccountKindSavings,
	AccountKindChecking,
	AccountKindBusiness,
}

// Valid reports whether k is one of the supported kinds.
func (k AccountKind) Valid() bool {
	for _, kind := range AccountKinds {
		if kind == k {
			return true
		}
	}

	return false
}

// AccountStatus is the lifecycle state of an account.
type AccountStatus string

// Account lifecycle states.
const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// CanTransitionTo reports whether the status may change to next.
//
// ACTIVE and FROZEN move between each other, both may be closed, CLOSED is terminal.
func (s AccountStatus) CanTransitionTo(next AccountStatus) bool {
	switch s {
	case AccountStatusActive:
		return next == AccountStatusFrozen || next == AccountStatusClosed
	case AccountStatusFrozen:
		return next == AccountStatusActive || next == AccountStatusClosed
	default:
		return false
	}
}

// Account holds the balance of a single owner's account.
type Account struct {
	ID        int64           `json:"id"`
	Number    string          `json:"number"`
	OwnerID   int64           `json:"owner_id"`
	Kind      AccountKind     `json:"kind"`
	Status    AccountStatus   `json:"status"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AccountNumber derives the human readable account number from the account id.
//
// Ids come from a single sequence, so numbers never collide.
func AccountNumber(id int64) string {
	return fmt.Sprintf("ACC%010d", id)
}

// CreateAccountParams is the input data to open an account.
type CreateAccountParams struct {
	OwnerID int64       `json:"owner_id"`
	Kind    AccountKind `json:"kind"`
}

// UpdateBalanceParams is the input data for a conditional balance write.
//
// The write only applies while the stored version still equals ExpectedVersion.
type UpdateBalanceParams struct {
	ID              int64
	ExpectedVersion int64
	Balance         decimal.Decimal
}

// UpdateStatusParams is the input data for a conditional status write.
type UpdateStatusParams struct {
	ID              int64
	ExpectedVersion int64
	Status          AccountStatus
}
