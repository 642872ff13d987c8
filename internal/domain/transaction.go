package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionKind is the closed set of movement kinds.
type TransactionKind string

// Movement kinds.
const (
	KindDeposit    TransactionKind = "DEPOSIT"
	KindWithdrawal TransactionKind = "WITHDRAWAL"
	KindTransfer   TransactionKind = "TRANSFER"
	KindInterest   TransactionKind = "INTEREST"
)

// TransactionStatus is the state of a transaction record.
type TransactionStatus string

// Transaction record states. The engine only ever writes COMPLETED records.
const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Movement is the kind specific part of a transaction record.
//
// Implementations are Deposit, Withdrawal, Transfer and Interest.
type Movement interface {
	Kind() TransactionKind
	// AccountIDs returns the touched accounts in ascending id order.
	AccountIDs() []int64
	// Delta returns the signed balance change applied to accountID.
	Delta(accountID int64, amount decimal.Decimal) decimal.Decimal
	// Source returns the account the record is filed under.
	Source() int64

	movement()
}

// Deposit credits a single account from outside the ledger.
type Deposit struct {
	AccountID int64
}

// Kind implements Movement.
func (Deposit) Kind() TransactionKind { return KindDeposit }

// AccountIDs implements Movement.
func (m Deposit) AccountIDs() []int64 { return []int64{m.AccountID} }

// Delta implements Movement.
func (m Deposit) Delta(accountID int64, amount decimal.Decimal) decimal.Decimal {
	if accountID != m.AccountID {
		return decimal.Zero
	}

	return amount
}

// Source implements Movement.
func (m Deposit) Source() int64 { return m.AccountID }

func (Deposit) movement() {}

// Withdrawal debits a single account to outside the ledger.
type Withdrawal struct {
	AccountID int64
}

// Kind implements Movement.
func (Withdrawal) Kind() TransactionKind { return KindWithdrawal }

// AccountIDs implements Movement.
func (m Withdrawal) AccountIDs() []int64 { return []int64{m.AccountID} }

// Delta implements Movement.
func (m Withdrawal) Delta(accountID int64, amount decimal.Decimal) decimal.Decimal {
	if accountID != m.AccountID {
		return decimal.Zero
	}

	return amount.Neg()
}

// Source implements Movement.
func (m Withdrawal) Source() int64 { return m.AccountID }

func (Withdrawal) movement() {}

// Transfer moves money between two accounts of the ledger.
type Transfer struct {
	FromAccountID int64
	ToAccountID   int64
}

// Kind implements Movement.
func (Transfer) Kind() TransactionKind { return KindTransfer }

// AccountIDs implements Movement.
func (m Transfer) AccountIDs() []int64 {
	if m.FromAccountID == m.ToAccountID {
		return []int64{m.FromAccountID}
	}

	// To avoid deadlocks accounts are always locked in ascending id order.
	if m.FromAccountID < m.ToAccountID {
		return []int64{m.FromAccountID, m.ToAccountID}
	}

	return []int64{m.ToAccountID, m.FromAccountID}
}

// Delta implements Movement.
func (m Transfer) Delta(accountID int64, amount decimal.Decimal) decimal.Decimal {
	switch accountID {
	case m.FromAccountID:
		return amount.Neg()
	case m.ToAccountID:
		return amount
	default:
		return decimal.Zero
	}
}

// Source implements Movement.
func (m Transfer) Source() int64 { return m.FromAccountID }

func (Transfer) movement() {}

// Interest credits interest to a single account.
type Interest struct {
	AccountID int64
}

// Kind implements Movement.
func (Interest) Kind() TransactionKind { return KindInterest }

// AccountIDs implements Movement.
func (m Interest) AccountIDs() []int64 { return []int64{m.AccountID} }

// Delta implements Movement.
func (m Interest) Delta(accountID int64, amount decimal.Decimal) decimal.Decimal {
	if accountID != m.AccountID {
		return decimal.Zero
	}

	return amount
}

// Source implements Movement.
func (m Interest) Source() int64 { return m.AccountID }

func (Interest) movement() {}

// Destination returns the destination account of m, if it has one.
func Destination(m Movement) (int64, bool) {
	if t, ok := m.(Transfer); ok {
		return t.ToAccountID, true
	}

	return 0, false
}

// NewMovement rebuilds a movement from its stored columns.
func NewMovement(kind TransactionKind, from int64, to *int64) (Movement, error) {
	switch kind {
	case KindDeposit:
		return Deposit{AccountID: from}, nil
	case KindWithdrawal:
		return Withdrawal{AccountID: from}, nil
	case KindInterest:
		return Interest{AccountID: from}, nil
	case KindTransfer:
		if to == nil {
			return nil, fmt.Errorf("transfer %d has no destination", from)
		}

		return Transfer{FromAccountID: from, ToAccountID: *to}, nil
	}

	return nil, fmt.Errorf("unknown transaction kind %q", kind)
}

// Transaction is an immutable record of a completed movement of money.
type Transaction struct {
	ID          int64
	Movement    Movement
	Amount      decimal.Decimal // always positive
	Description string
	Status      TransactionStatus
	CreatedAt   time.Time
}

// Involves reports whether the record touches accountID.
func (t Transaction) Involves(accountID int64) bool {
	for _, id := range t.Movement.AccountIDs() {
		if id == accountID {
			return true
		}
	}

	return false
}

type transactionJSON struct {
	ID            int64             `json:"id"`
	Kind          TransactionKind   `json:"kind"`
	FromAccountID int64             `json:"from_account_id"`
	ToAccountID   *int64            `json:"to_account_id,omitempty"`
	Amount        decimal.Decimal   `json:"amount"`
	Description   string            `json:"description"`
	Status        TransactionStatus `json:"status"`
	CreatedAt     time.Time         `json:"created_at"`
}

// MarshalJSON flattens the movement into kind and account references.
func (t Transaction) MarshalJSON() ([]byte, error) {
	v := transactionJSON{
		ID:          t.ID,
		Amount:      t.Amount,
		Description: t.Description,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
	}

	if t.Movement != nil {
		v.Kind = t.Movement.Kind()
		v.FromAccountID = t.Movement.Source()

		if to, ok := Destination(t.Movement); ok {
			v.ToAccountID = &to
		}
	}

	return json.Marshal(v)
}

// UnmarshalJSON restores the movement from kind and account references.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	var v transactionJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	m, err := NewMovement(v.Kind, v.FromAccountID, v.ToAccountID)
	if err != nil {
		return err
	}

	*t = Transaction{
		ID:          v.ID,
		Movement:    m,
		Amount:      v.Amount,
		Description: v.Description,
		Status:      v.Status,
		CreatedAt:   v.CreatedAt,
	}

	return nil
}

// PostingResult is the result of a single account operation.
type PostingResult struct {
	Transaction Transaction `json:"transaction"`
	Account     Account     `json:"account"`
}

// TransferResult is the result of the transfer operation.
type TransferResult struct {
	Transaction Transaction `json:"transaction"`
	FromAccount Account     `json:"from_account"`
	ToAccount   Account     `json:"to_account"`
}

// PostingParams is the input data for a single account operation.
type PostingParams struct {
	AccountID   int64           `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// TransferParams is the input data for the transfer operation.
type TransferParams struct {
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	Description   string          `json:"description"`
}
