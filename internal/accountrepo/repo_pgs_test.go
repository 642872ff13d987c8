//go:build integration

package accountrepo

import (
	"context"
	"log"
	"os"
	"testing"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/integrationtest"
	"github.com/go-petr/pet-ledger/pkg/randompkg"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"
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

func createRandomAccount(t *testing.T, r *RepoPGS, ownerID int64) domain.Account {
	t.Helper()

	arg := domain.CreateAccountParams{
		OwnerID: ownerID,
		Kind:    randompkg.AccountKind(),
	}

	account, err := r.Create(context.Background(), arg)
	require.NoError(t, err)

	require.NotZero(t, account.ID)
	require.Equal(t, domain.AccountNumber(account.ID), account.Number)
	require.Equal(t, arg.OwnerID, account.OwnerID)
	require.Equal(t, arg.Kind, account.Kind)
	require.Equal(t, domain.AccountStatusActive, account.Status)
	require.True(t, account.Balance.IsZero())
	require.EqualValues(t, 1, account.Version)
	require.NotZero(t, account.CreatedAt)

	return account
}

func TestGet(t *testing.T) {
	r := NewRepoPGS(integrationtest.SetupTX(t, testPG.DB))
	want := createRandomAccount(t, r, randompkg.OwnerID())

	got, err := r.Get(context.Background(), want.ID)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got, cmpopts.EquateApproxTime(0), cmp.Comparer(decimal.Decimal.Equal)); diff != "" {
		t.Errorf("Get() returned unexpected difference (-want +got):\n%s", diff)
	}

	byNumber, err := r.GetByNumber(context.Background(), want.Number)
	require.NoError(t, err)
	require.Equal(t, want.ID, byNumber.ID)

	_, err = r.Get(context.Background(), want.ID+1000)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = r.GetByNumber(context.Background(), "ACC9999999999")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestList(t *testing.T) {
	r := NewRepoPGS(integrationtest.SetupTX(t, testPG.DB))
	ownerID := randompkg.OwnerID()

	var want []int64
	for i := 0; i < 3; i++ {
		want = append(want, createRandomAccount(t, r, ownerID).ID)
	}

	createRandomAccount(t, r, ownerID+1)

	accounts, err := r.List(context.Background(), ownerID)
	require.NoError(t, err)

	var got []int64
	for _, a := range accounts {
		got = append(got, a.ID)
	}

	require.Equal(t, want, got)
}

func TestLock(t *testing.T) {
	r := NewRepoPGS(integrationtest.SetupTX(t, testPG.DB))
	a1 := createRandomAccount(t, r, randompkg.OwnerID())
	a2 := createRandomAccount(t, r, randompkg.OwnerID())

	locked, err := r.Lock(context.Background(), a2.ID, a1.ID, a2.ID+1000)
	require.NoError(t, err)
	require.Len(t, locked, 2)
	require.Equal(t, a1.ID, locked[0].ID)
	require.Equal(t, a2.ID, locked[1].ID)
}

func TestUpdateBalance(t *testing.T) {
	r := NewRepoPGS(integrationtest.SetupTX(t, testPG.DB))
	a := createRandomAccount(t, r, randompkg.OwnerID())

	testCases := []struct {
		name    string
		arg     domain.UpdateBalanceParams
		wantErr error
	}{
		{
			name:    "NegativeBalance",
			arg:     domain.UpdateBalanceParams{ID: a.ID, ExpectedVersion: a.Version, Balance: decimal.NewFromInt(-1)},
			wantErr: domain.ErrInsufficientFunds,
		},
		{
			name:    "StaleVersion",
			arg:     domain.UpdateBalanceParams{ID: a.ID, ExpectedVersion: a.Version + 1, Balance: decimal.NewFromInt(1)},
			wantErr: domain.ErrConcurrencyConflict,
		},
		{
			name: "OK",
			arg:  domain.UpdateBalanceParams{ID: a.ID, ExpectedVersion: a.Version, Balance: decimal.RequireFromString("123.45")},
		},
	}

	for _, tc := range testCases {
		// each failing statement aborts the transaction, so run them in savepoints
		_, err := r.db.ExecContext(context.Background(), "SAVEPOINT sp")
		require.NoError(t, err)

		got, err := r.UpdateBalance(context.Background(), tc.arg)
		if tc.wantErr != nil {
			require.ErrorIs(t, err, tc.wantErr, tc.name)

			_, err = r.db.ExecContext(context.Background(), "ROLLBACK TO SAVEPOINT sp")
			require.NoError(t, err)

			continue
		}

		require.NoError(t, err, tc.name)
		require.True(t, got.Balance.Equal(tc.arg.Balance))
		require.Equal(t, a.Version+1, got.Version)
	}
}

func TestUpdateStatus(t *testing.T) {
	r := NewRepoPGS(integrationtest.SetupTX(t, testPG.DB))
	a := createRandomAccount(t, r, randompkg.OwnerID())

	got, err := r.UpdateStatus(context.Background(), domain.UpdateStatusParams{
		ID:              a.ID,
		ExpectedVersion: a.Version,
		Status:          domain.AccountStatusFrozen,
	})
	require.NoError(t, err)
	require.Equal(t, domain.AccountStatusFrozen, got.Status)

	_, err = r.UpdateStatus(context.Background(), domain.UpdateStatusParams{
		ID:              a.ID,
		ExpectedVersion: a.Version,
		Status:          domain.AccountStatusActive,
	})
	require.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}
