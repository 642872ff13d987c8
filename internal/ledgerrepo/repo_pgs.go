// Package ledgerrepo implements the ledger store on top of PostgreSQL.
//
// A unit is one database transaction. Accounts are locked with SELECT ... FOR UPDATE
// in ascending id order and balance writes are conditional on the account version.
package ledgerrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/go-petr/pet-ledger/internal/accountrepo"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/transactionrepo"
	"github.com/go-petr/pet-ledger/pkg/dbpkg"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Config holds the store tunables.
type Config struct {
	// LockTimeout bounds the server side wait for a row lock.
	LockTimeout time.Duration
	// BreakerMaxFailures is the number of consecutive persistence failures that opens the breaker.
	BreakerMaxFailures uint32
	// BreakerOpenTimeout is how long the breaker stays open before probing the database again.
	BreakerOpenTimeout time.Duration
}

// RepoPGS facilitates ledger store logic.
type RepoPGS struct {
	conn         *sql.DB
	accounts     *accountrepo.RepoPGS
	transactions *transactionrepo.RepoPGS
	breaker      *gobreaker.CircuitBreaker
	lockTimeout  time.Duration
}

// NewRepoPGS returns ledger RepoPGS with connection to start transactions.
func NewRepoPGS(conn *sql.DB, cfg Config, logger zerolog.Logger) *RepoPGS {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}

	if cfg.BreakerMaxFailures == 0 {
		cfg.BreakerMaxFailures = 5
	}

	settings := gobreaker.Settings{
		Name:    "postgres",
		Timeout: cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		// Business rejections and contention mean the database answered.
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, domain.ErrPersistenceUnavailable) && !errors.Is(err, domain.ErrCommitUnknown)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	}

	return &RepoPGS{
		conn:         conn,
		accounts:     accountrepo.NewRepoPGS(conn),
		transactions: transactionrepo.NewRepoPGS(conn),
		breaker:      gobreaker.NewCircuitBreaker(settings),
		lockTimeout:  cfg.LockTimeout,
	}
}

var domainErrors = []error{
	domain.ErrInvalidAmount,
	domain.ErrAccountNotFound,
	domain.ErrAccountNotActive,
	domain.ErrInsufficientFunds,
	domain.ErrSameAccount,
	domain.ErrConcurrencyConflict,
	domain.ErrPersistenceUnavailable,
	domain.ErrCommitUnknown,
	domain.ErrInvalidStatusTransition,
	domain.ErrBalanceNotZero,
	domain.ErrTransactionNotFound,
}

// classify turns driver failures into domain errors. Failures the caller caused by
// giving up are reported as the context error.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}

	for _, known := range domainErrors {
		if errors.Is(err, known) {
			return err
		}
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, ctxErr)
		}

		return ctxErr
	}

	if dbpkg.IsTransient(err) {
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
}

// execute runs fn through the circuit breaker.
func (r *RepoPGS) execute(ctx context.Context, fn func() error) error {
	_, err := r.breaker.Execute(func() (interface{}, error) {
		return nil, classify(ctx, fn())
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", domain.ErrPersistenceUnavailable, err)
	}

	return err
}

// CreateAccount opens an ACTIVE account with zero balance.
func (r *RepoPGS) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	var a domain.Account

	err := r.execute(ctx, func() error {
		var err error
		a, err = r.accounts.Create(ctx, arg)

		return err
	})

	return a, err
}

// GetAccount returns the account with the given id.
func (r *RepoPGS) GetAccount(ctx context.Context, id int64) (domain.Account, bool, error) {
	var a domain.Account

	err := r.execute(ctx, func() error {
		var err error
		a, err = r.accounts.Get(ctx, id)

		return err
	})

	return found(a, err)
}

// GetAccountByNumber returns the account with the given account number.
func (r *RepoPGS) GetAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error) {
	var a domain.Account

	err := r.execute(ctx, func() error {
		var err error
		a, err = r.accounts.GetByNumber(ctx, number)

		return err
	})

	return found(a, err)
}

func found[T any](v T, err error) (T, bool, error) {
	var zero T

	switch {
	case err == nil:
		return v, true, nil
	case errors.Is(err, domain.ErrAccountNotFound), errors.Is(err, domain.ErrTransactionNotFound):
		return zero, false, nil
	default:
		return zero, false, err
	}
}

// ListAccounts returns the accounts of the owner ordered by id.
func (r *RepoPGS) ListAccounts(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	var items []domain.Account

	err := r.execute(ctx, func() error {
		var err error
		items, err = r.accounts.List(ctx, ownerID)

		return err
	})

	return items, err
}

// GetTransaction returns the transaction with the given id.
func (r *RepoPGS) GetTransaction(ctx context.Context, id int64) (domain.Transaction, bool, error) {
	var t domain.Transaction

	err := r.execute(ctx, func() error {
		var err error
		t, err = r.transactions.Get(ctx, id)

		return err
	})

	return found(t, err)
}

// History returns up to limit transactions touching the account, newest first.
func (r *RepoPGS) History(ctx context.Context, accountID int64, limit int) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		for t, err := range r.transactions.History(ctx, accountID, limit) {
			if !yield(t, classify(ctx, err)) {
				return
			}
		}
	}
}

// Atomic runs fn inside a database transaction and commits it if fn succeeds.
func (r *RepoPGS) Atomic(ctx context.Context, fn func(ctx context.Context, u domain.Unit) error) error {
	return r.execute(ctx, func() error {
		l := zerolog.Ctx(ctx)

		tx, err := r.conn.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		defer func() {
			if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
				l.Error().Err(err).Send()
			}
		}()

		lockTimeout := fmt.Sprintf("SET LOCAL lock_timeout = %d", r.lockTimeout.Milliseconds())
		if _, err := tx.ExecContext(ctx, lockTimeout); err != nil {
			return err
		}

		u := &unit{
			accounts:     accountrepo.NewRepoPGS(tx),
			transactions: transactionrepo.NewRepoPGS(tx),
		}

		if err := fn(ctx, u); err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrCommitUnknown, err)
		}

		return nil
	})
}

// unit is a set of tx scoped repositories.
type unit struct {
	accounts     *accountrepo.RepoPGS
	transactions *transactionrepo.RepoPGS
	last         int64
}

func (u *unit) LockAccounts(ctx context.Context, ids ...int64) ([]domain.Account, error) {
	ids = slices.Clone(ids)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	if len(ids) > 0 && ids[0] < u.last {
		return nil, fmt.Errorf("lock order violation: account %d requested after %d", ids[0], u.last)
	}

	locked, err := u.accounts.Lock(ctx, ids...)
	if err != nil {
		return nil, err
	}

	if len(ids) > 0 {
		u.last = ids[len(ids)-1]
	}

	return locked, nil
}

func (u *unit) UpdateBalance(ctx context.Context, arg domain.UpdateBalanceParams) (domain.Account, error) {
	return u.accounts.UpdateBalance(ctx, arg)
}

func (u *unit) UpdateStatus(ctx context.Context, arg domain.UpdateStatusParams) (domain.Account, error) {
	return u.accounts.UpdateStatus(ctx, arg)
}

func (u *unit) Append(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	return u.transactions.Append(ctx, t)
}
