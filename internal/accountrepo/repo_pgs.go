// Package accountrepo manages repository layer of accounts.
package accountrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"

	"github.com/lib/pq"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates account repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns account RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{
		db: db,
	}
}

const accountColumns = `id, number, owner_id, kind, status, balance, version, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (domain.Account, error) {
	var a domain.Account

	err := row.Scan(
		&a.ID,
		&a.Number,
		&a.OwnerID,
		&a.Kind,
		&a.Status,
		&a.Balance,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)

	return a, err
}

// The account number is derived from the id so it never collides.
const createQuery = `
WITH next AS (
    SELECT nextval(pg_get_serial_sequence('accounts', 'id')) AS id
)
INSERT INTO
    accounts (id, number, owner_id, kind)
SELECT
    id, 'ACC' || lpad(id::text, 10, '0'), $1, $2
FROM next
RETURNING ` + accountColumns

// Create creates the ACTIVE account with zero balance and then returns it.
func (r *RepoPGS) Create(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	a, err := scanAccount(r.db.QueryRowContext(ctx, createQuery, arg.OwnerID, arg.Kind))
	if err != nil {
		l.Error().Err(err).Msgf("Create(ctx context.Context, %+v)", arg)
		return domain.Account{}, fmt.Errorf("create account: %w", err)
	}

	return a, nil
}

const getQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = $1
`

// Get returns the account with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}

		zerolog.Ctx(ctx).Error().Err(err).Send()

		return domain.Account{}, fmt.Errorf("get account: %w", err)
	}

	return a, nil
}

const getByNumberQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE number = $1
`

// GetByNumber returns the account with the given account number.
func (r *RepoPGS) GetByNumber(ctx context.Context, number string) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, getByNumberQuery, number))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Account{}, domain.ErrAccountNotFound
		}

		zerolog.Ctx(ctx).Error().Err(err).Send()

		return domain.Account{}, fmt.Errorf("get account by number: %w", err)
	}

	return a, nil
}

const listQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE owner_id = $1
ORDER BY id
`

// List returns the accounts of the owner ordered by id.
func (r *RepoPGS) List(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	return r.query(ctx, listQuery, ownerID)
}

// Rows are locked in the order they are returned, so ORDER BY id keeps lock acquisition ascending.
const lockQuery = `
SELECT ` + accountColumns + `
FROM accounts
WHERE id = ANY($1)
ORDER BY id
FOR UPDATE
`

// Lock locks the accounts with the given ids until the surrounding transaction ends
// and returns the existing ones ordered by id.
func (r *RepoPGS) Lock(ctx context.Context, ids ...int64) ([]domain.Account, error) {
	return r.query(ctx, lockQuery, pq.Array(ids))
}

func (r *RepoPGS) query(ctx context.Context, query string, args ...any) ([]domain.Account, error) {
	l := zerolog.Ctx(ctx)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		l.Error().Err(err).Send()
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	items := []domain.Account{}

	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			l.Error().Err(err).Send()
			return nil, fmt.Errorf("scan account: %w", err)
		}

		items = append(items, a)
	}

	if err := rows.Close(); err != nil {
		l.Error().Err(err).Send()
		return nil, fmt.Errorf("query accounts: %w", err)
	}

	if err := rows.Err(); err != nil {
		l.Error().Err(err).Send()
		return nil, fmt.Errorf("query accounts: %w", err)
	}

	return items, nil
}

const updateBalanceQuery = `
UPDATE accounts
SET balance = $3, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + accountColumns

// UpdateBalance sets the account's balance if its version still matches and returns the changed account.
func (r *RepoPGS) UpdateBalance(ctx context.Context, arg domain.UpdateBalanceParams) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, updateBalanceQuery, arg.ID, arg.ExpectedVersion, arg.Balance))
	if err != nil {
		return domain.Account{}, r.updateErr(ctx, err)
	}

	return a, nil
}

const updateStatusQuery = `
UPDATE accounts
SET status = $3, version = version + 1, updated_at = now()
WHERE id = $1 AND version = $2
RETURNING ` + accountColumns

// UpdateStatus sets the account's status if its version still matches and returns the changed account.
func (r *RepoPGS) UpdateStatus(ctx context.Context, arg domain.UpdateStatusParams) (domain.Account, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx, updateStatusQuery, arg.ID, arg.ExpectedVersion, arg.Status))
	if err != nil {
		return domain.Account{}, r.updateErr(ctx, err)
	}

	return a, nil
}

func (r *RepoPGS) updateErr(ctx context.Context, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		// the row is gone or its version moved on
		return domain.ErrConcurrencyConflict
	}

	zerolog.Ctx(ctx).Error().Err(err).Send()

	if dbpkg.Constraint(err) == "accounts_balance_check" {
		return domain.ErrInsufficientFunds
	}

	return fmt.Errorf("update account: %w", err)
}
