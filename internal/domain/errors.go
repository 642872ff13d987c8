package domain

import "errors"

var (
	// ErrInvalidAmount indicates a non-positive amount, more than two fraction digits or an amount over the ceiling.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrAccountNotFound indicates that the account is not found.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountNotActive indicates that the account is frozen or closed.
	ErrAccountNotActive = errors.New("account not active")
	// ErrInsufficientFunds indicates that the account does not have sufficient balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSameAccount indicates a transfer whose source and destination are the same account.
	ErrSameAccount = errors.New("source and destination account are the same")
	// ErrConcurrencyConflict indicates that the account changed or stayed locked while the operation waited.
	ErrConcurrencyConflict = errors.New("concurrency conflict")
	// ErrPersistenceUnavailable indicates that the storage could not complete the operation.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
	// ErrCommitUnknown indicates that the commit failed in transit, the unit may or may not have been applied.
	ErrCommitUnknown = errors.New("commit outcome unknown")

	// ErrInvalidStatusTransition indicates a status change the account lifecycle does not allow.
	ErrInvalidStatusTransition = errors.New("invalid account status transition")
	// ErrBalanceNotZero indicates an attempt to close an account that still holds money.
	ErrBalanceNotZero = errors.New("account balance is not zero")
	// ErrAccountOwnerMismatch indicates that the account does not belong to the caller.
	ErrAccountOwnerMismatch = errors.New("account owner mismatch")
	// ErrTransactionNotFound indicates that the transaction is not found.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrInvalidAccountKind indicates an unsupported account kind.
	ErrInvalidAccountKind = errors.New("invalid account kind")
)

// IsRetryable reports whether the operation may succeed when repeated unchanged.
// A unit whose commit outcome is unknown is never repeated.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrCommitUnknown) {
		return false
	}

	return errors.Is(err, ErrConcurrencyConflict) || errors.Is(err, ErrPersistenceUnavailable)
}
