//go:build integration

package transactionrepo

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/stretchr/testify/require"
)

var testPG *integrationtest.Postgres

func TestMain(m *testing.M) {
	var err error

	testPG, err = integrationtest.StartPostgres(context.Background())
	if err != nil {
		log.Fatal("cannot start postgres:", err)
	}

	code := m.Run()

	testPG.Terminate(context.Background())
	os.Exit(code)
}

func createAccount(t *testing.T, r *accountrepo.RepoPGS) domain.Account {
	t.Helper()

	a, err := r.Create(context.Background(), domain.CreateAccountParams{
		OwnerID: randompkg.OwnerID(),
		Kind:    randompkg.AccountKind(),
	})
	require.NoError(t, err)

	return a
}

func TestAppendAndGet(t *testing.T) {
	tx := integrationtest.SetupTX(t, testPG.DB)
	accounts := accountrepo.NewRepoPGS(tx)
	r := NewRepoPGS(tx)

	from := createAccount(t, accounts)
	to := createAccount(t, accounts)

	arg := domain.Transaction{
		Movement:    domain.Transfer{FromAccountID: from.ID, ToAccountID: to.ID},
		Amount:      randompkg.MoneyAmountBetween(1, 100),
		Description: randompkg.String(12),
		Status:      domain.TransactionStatusCompleted,
	}

	created, err := r.Append(context.Background(), arg)
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	require.NotZero(t, created.CreatedAt)
	require.Equal(t, arg.Movement, created.Movement)
	require.True(t, arg.Amount.Equal(created.Amount))

	got, err := r.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, created.ID, got.ID)
	require.Equal(t, arg.Description, got.Description)
	require.Equal(t, arg.Movement, got.Movement)

	_, err = r.Get(context.Background(), created.ID+1000)
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestAppendConstraintViolations(t *testing.T) {
	tx := integrationtest.SetupTX(t, testPG.DB)
	accounts := accountrepo.NewRepoPGS(tx)
	r := NewRepoPGS(tx)

	a := createAccount(t, accounts)

	testCases := []struct {
		name    string
		arg     domain.Transaction
		wantErr error
	}{
		{
			name:    "ErrAccountNotFound",
			arg:     domain.Transaction{Movement: domain.Deposit{AccountID: a.ID + 1000}, Amount: randompkg.MoneyAmountBetween(1, 10)},
			wantErr: domain.ErrAccountNotFound,
		},
		{
			name:    "ErrInvalidAmount",
			arg:     domain.Transaction{Movement: domain.Deposit{AccountID: a.ID}, Amount: randompkg.MoneyAmountBetween(1, 10).Neg()},
			wantErr: domain.ErrInvalidAmount,
		},
		{
			name:    "ErrSameAccount",
			arg:     domain.Transaction{Movement: domain.Transfer{FromAccountID: a.ID, ToAccountID: a.ID}, Amount: randompkg.MoneyAmountBetween(1, 10)},
			wantErr: domain.ErrSameAccount,
		},
	}

	for _, tc := range testCases {
		_, err := tx.Exec("SAVEPOINT sp")
		require.NoError(t, err)

		tc.arg.Status = domain.TransactionStatusCompleted

		_, err = r.Append(context.Background(), tc.arg)
		require.ErrorIs(t, err, tc.wantErr, tc.name)

		_, err = tx.Exec("ROLLBACK TO SAVEPOINT sp")
		require.NoError(t, err)
	}
}

func TestHistory(t *testing.T) {
	tx := integrationtest.SetupTX(t, testPG.DB)
	accounts := accountrepo.NewRepoPGS(tx)
	r := NewRepoPGS(tx)

	a := createAccount(t, accounts)
	b := createAccount(t, accounts)

	movements := []domain.Movement{
		domain.Deposit{AccountID: a.ID},
		domain.Deposit{AccountID: b.ID},
		domain.Transfer{FromAccountID: b.ID, ToAccountID: a.ID},
		domain.Withdrawal{AccountID: a.ID},
	}

	var ids []int64

	for _, m := range movements {
		created, err := r.Append(context.Background(), domain.Transaction{
			Movement: m,
			Amount:   randompkg.MoneyAmountBetween(1, 10),
			Status:   domain.TransactionStatusCompleted,
		})
		require.NoError(t, err)

		ids = append(ids, created.ID)
	}

	// all rows share the transaction timestamp, so the id breaks the tie
	var got []int64

	for tr, err := range r.History(context.Background(), a.ID, 2) {
		require.NoError(t, err)
		got = append(got, tr.ID)
	}

	require.Equal(t, []int64{ids[3], ids[2]}, got)

	for range r.History(context.Background(), a.ID, 10) {
		break
	}
}
