package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestTransferAccountIDsAscending(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		m    Transfer
		want []int64
	}{
		{name: "FromLower", m: Transfer{FromAccountID: 1, ToAccountID: 2}, want: []int64{1, 2}},
		{name: "FromHigher", m: Transfer{FromAccountID: 9, ToAccountID: 3}, want: []int64{3, 9}},
		{name: "Same", m: Transfer{FromAccountID: 4, ToAccountID: 4}, want: []int64{4}},
	}

	for _, tc := range testCases {
		if diff := cmp.Diff(tc.want, tc.m.AccountIDs()); diff != "" {
			t.Errorf("%s: AccountIDs() returned unexpected difference (-want +got):\n%s", tc.name, diff)
		}
	}
}

func TestMovementDelta(t *testing.T) {
	t.Parallel()

	amount := decimal.RequireFromString("40.00")

	transfer := Transfer{FromAccountID: 1, ToAccountID: 2}
	require.True(t, transfer.Delta(1, amount).Equal(amount.Neg()))
	require.True(t, transfer.Delta(2, amount).Equal(amount))
	require.True(t, transfer.Delta(3, amount).IsZero())

	// money is conserved across the accounts of a transfer
	sum := decimal.Zero
	for _, id := range transfer.AccountIDs() {
		sum = sum.Add(transfer.Delta(id, amount))
	}
	require.True(t, sum.IsZero())

	require.True(t, Deposit{AccountID: 5}.Delta(5, amount).Equal(amount))
	require.True(t, Withdrawal{AccountID: 5}.Delta(5, amount).Equal(amount.Neg()))
	require.True(t, Interest{AccountID: 5}.Delta(5, amount).Equal(amount))
}

func TestNewMovement(t *testing.T) {
	t.Parallel()

	to := int64(2)

	testCases := []struct {
		name    string
		kind    TransactionKind
		to      *int64
		want    Movement
		wantErr bool
	}{
		{name: "Deposit", kind: KindDeposit, want: Deposit{AccountID: 1}},
		{name: "Withdrawal", kind: KindWithdrawal, want: Withdrawal{AccountID: 1}},
		{name: "Interest", kind: KindInterest, want: Interest{AccountID: 1}},
		{name: "Transfer", kind: KindTransfer, to: &to, want: Transfer{FromAccountID: 1, ToAccountID: 2}},
		{name: "TransferWithoutDestination", kind: KindTransfer, wantErr: true},
		{name: "Unknown", kind: TransactionKind("REFUND"), wantErr: true},
	}

	for _, tc := range testCases {
		got, err := NewMovement(tc.kind, 1, tc.to)
		if tc.wantErr {
			require.Error(t, err, tc.name)
			continue
		}

		require.NoError(t, err, tc.name)
		require.Equal(t, tc.want, got, tc.name)
	}
}

func TestTransactionJSON(t *testing.T) {
	t.Parallel()

	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	transfer := Transaction{
		ID:          10,
		Movement:    Transfer{FromAccountID: 1, ToAccountID: 2},
		Amount:      decimal.RequireFromString("40.00"),
		Description: "rent",
		Status:      TransactionStatusCompleted,
		CreatedAt:   created,
	}

	data, err := json.Marshal(transfer)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"id": 10,
		"kind": "TRANSFER",
		"from_account_id": 1,
		"to_account_id": 2,
		"amount": "40",
		"description": "rent",
		"status": "COMPLETED",
		"created_at": "2024-05-01T10:00:00Z"
	}`, string(data))

	deposit := transfer
	deposit.Movement = Deposit{AccountID: 1}

	data, err = json.Marshal(deposit)
	require.NoError(t, err)
	require.NotContains(t, string(data), "to_account_id")

	var got Transaction
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, deposit.Movement, got.Movement)
	require.True(t, deposit.Amount.Equal(got.Amount))
}

func TestAccountStatusTransitions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		from, to AccountStatus
		want     bool
	}{
		{AccountStatusActive, AccountStatusFrozen, true},
		{AccountStatusFrozen, AccountStatusActive, true},
		{AccountStatusActive, AccountStatusClosed, true},
		{AccountStatusFrozen, AccountStatusClosed, true},
		{AccountStatusActive, AccountStatusActive, false},
		{AccountStatusClosed, AccountStatusActive, false},
		{AccountStatusClosed, AccountStatusFrozen, false},
	}

	for _, tc := range testCases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.want {
			t.Errorf("%v.CanTransitionTo(%v) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestAccountNumber(t *testing.T) {
	t.Parallel()

	require.Equal(t, "ACC0000000042", AccountNumber(42))
	require.Regexp(t, `^ACC\d{10}$`, AccountNumber(1234567890))
}
