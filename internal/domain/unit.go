package domain

import "context"

// Unit is the set of writes that commit together or not at all.
//
// A Unit is only valid inside the function passed to the store's Atomic method.
type Unit interface {
	// LockAccounts locks the accounts with the given ids in ascending id order
	// and returns the ones that exist, sorted by id.
	// The locks are held until the unit commits or rolls back.
	LockAccounts(ctx context.Context, ids ...int64) ([]Account, error)
	// UpdateBalance writes the new balance if the account version is unchanged.
	// It returns ErrConcurrencyConflict otherwise.
	UpdateBalance(ctx context.Context, arg UpdateBalanceParams) (Account, error)
	// UpdateStatus writes the new status if the account version is unchanged.
	UpdateStatus(ctx context.Context, arg UpdateStatusParams) (Account, error)
	// Append records a transaction in the log.
	Append(ctx context.Context, t Transaction) (Transaction, error)
}
