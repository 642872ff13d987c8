// Package transactionrepo manages repository layer of the transaction log.
package transactionrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/rs/zerolog"
)

// RepoPGS facilitates transaction repository layer logic.
type RepoPGS struct {
	db dbpkg.SQLInterface
}

// NewRepoPGS returns transaction RepoPGS.
func NewRepoPGS(db dbpkg.SQLInterface) *RepoPGS {
	return &RepoPGS{db: db}
}

const columns = `id, kind, from_account_id, to_account_id, amount, description, status, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (domain.Transaction, error) {
	var (
		t    domain.Transaction
		kind domain.TransactionKind
		from int64
		to   sql.NullInt64
	)

	err := row.Scan(
		&t.ID,
		&kind,
		&from,
		&to,
		&t.Amount,
		&t.Description,
		&t.Status,
		&t.CreatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}

	var dest *int64
	if to.Valid {
		dest = &to.Int64
	}

	t.Movement, err = domain.NewMovement(kind, from, dest)
	if err != nil {
		return domain.Transaction{}, err
	}

	return t, nil
}

const appendQuery = `
INSERT INTO
    transactions (kind, from_account_id, to_account_id, amount, description, status)
VALUES
    ($1, $2, $3, $4, $5, $6)
RETURNING ` + columns

// Append records the transaction and then returns it with its id and timestamp.
func (r *RepoPGS) Append(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	l := zerolog.Ctx(ctx)

	var to sql.NullInt64
	if id, ok := domain.Destination(t.Movement); ok {
		to = sql.NullInt64{Int64: id, Valid: true}
	}

	row := r.db.QueryRowContext(ctx, appendQuery,
		t.Movement.Kind(),
		t.Movement.Source(),
		to,
		t.Amount,
		t.Description,
		t.Status,
	)

	created, err := scanTransaction(row)
	if err != nil {
		l.Error().Err(err).Msgf("Append(ctx context.Context, %+v)", t)

		switch dbpkg.Constraint(err) {
		case "transactions_from_account_id_fkey", "transactions_to_account_id_fkey":
			return domain.Transaction{}, domain.ErrAccountNotFound
		case "transactions_amount_check":
			return domain.Transaction{}, domain.ErrInvalidAmount
		case "transactions_distinct_accounts_check":
			return domain.Transaction{}, domain.ErrSameAccount
		}

		return domain.Transaction{}, fmt.Errorf("append transaction: %w", err)
	}

	return created, nil
}

const getQuery = `
SELECT ` + columns + `
FROM transactions
WHERE id = $1
`

// Get returns the transaction with the given id.
func (r *RepoPGS) Get(ctx context.Context, id int64) (domain.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, getQuery, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}

		zerolog.Ctx(ctx).Error().Err(err).Send()

		return domain.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}

	return t, nil
}

const historyQuery = `
SELECT ` + columns + `
FROM transactions
WHERE
    from_account_id = $1 OR to_account_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

// History returns up to limit transactions touching the account, newest first.
//
// The query runs when the sequence is ranged over. Breaking out of the loop
// closes the rows.
func (r *RepoPGS) History(ctx context.Context, accountID int64, limit int) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		l := zerolog.Ctx(ctx)

		rows, err := r.db.QueryContext(ctx, historyQuery, accountID, limit)
		if err != nil {
			l.Error().Err(err).Send()
			yield(domain.Transaction{}, fmt.Errorf("query history: %w", err))

			return
		}
		defer rows.Close()

		for rows.Next() {
			t, err := scanTransaction(rows)
			if err != nil {
				l.Error().Err(err).Send()
				yield(domain.Transaction{}, fmt.Errorf("scan transaction: %w", err))

				return
			}

			if !yield(t, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			l.Error().Err(err).Send()
			yield(domain.Transaction{}, fmt.Errorf("query history: %w", err))
		}
	}
}
