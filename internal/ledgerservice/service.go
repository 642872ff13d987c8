// Package ledgerservice is the ledger engine: it validates money movements and
// applies balance changes and the matching transaction record as one atomic unit.
package ledgerservice

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/internal/policy"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store provides the persistence boundary needed by the ledger engine.
type Store interface {
	CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error)
	GetAccount(ctx context.Context, id int64) (domain.Account, bool, error)
	GetAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error)
	ListAccounts(ctx context.Context, ownerID int64) ([]domain.Account, error)
	GetTransaction(ctx context.Context, id int64) (domain.Transaction, bool, error)
	History(ctx context.Context, accountID int64, limit int) iter.Seq2[domain.Transaction, error]
	// Atomic runs fn inside a unit whose writes commit together or not at all.
	Atomic(ctx context.Context, fn func(ctx context.Context, u domain.Unit) error) error
}

// Config holds the engine tunables.
type Config struct {
	// LockTimeout bounds a single attempt, lock waits included.
	LockTimeout time.Duration
	// MaxRetries is the number of extra attempts after a retryable failure.
	MaxRetries uint64
	// RetryBaseDelay is the first backoff interval between attempts.
	RetryBaseDelay time.Duration
	// HistoryLimit is the default and maximum number of history records returned.
	HistoryLimit int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		LockTimeout:    5 * time.Second,
		MaxRetries:     3,
		RetryBaseDelay: 10 * time.Millisecond,
		HistoryLimit:   50,
	}
}

// Service facilitates the ledger engine logic.
type Service struct {
	store Store
	cfg   Config
}

// New returns the ledger engine working on top of the given store.
func New(store Store, cfg Config) *Service {
	def := DefaultConfig()

	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = def.LockTimeout
	}

	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = def.RetryBaseDelay
	}

	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = def.HistoryLimit
	}

	return &Service{
		store: store,
		cfg:   cfg,
	}
}

// Deposit credits the account and records a DEPOSIT.
func (s *Service) Deposit(ctx context.Context, arg domain.PostingParams) (domain.PostingResult, error) {
	m := domain.Deposit{AccountID: arg.AccountID}

	t, accounts, err := s.post(ctx, m, arg.Amount, arg.Description)
	if err != nil {
		return domain.PostingResult{}, err
	}

	return domain.PostingResult{Transaction: t, Account: accounts[0]}, nil
}

// Withdraw debits the account and records a WITHDRAWAL.
func (s *Service) Withdraw(ctx context.Context, arg domain.PostingParams) (domain.PostingResult, error) {
	m := domain.Withdrawal{AccountID: arg.AccountID}

	t, accounts, err := s.post(ctx, m, arg.Amount, arg.Description)
	if err != nil {
		return domain.PostingResult{}, err
	}

	return domain.PostingResult{Transaction: t, Account: accounts[0]}, nil
}

// CreditInterest credits interest to the account and records an INTEREST.
func (s *Service) CreditInterest(ctx context.Context, arg domain.PostingParams) (domain.PostingResult, error) {
	m := domain.Interest{AccountID: arg.AccountID}

	t, accounts, err := s.post(ctx, m, arg.Amount, arg.Description)
	if err != nil {
		return domain.PostingResult{}, err
	}

	return domain.PostingResult{Transaction: t, Account: accounts[0]}, nil
}

// Transfer debits the source, credits the destination and records one TRANSFER.
func (s *Service) Transfer(ctx context.Context, arg domain.TransferParams) (domain.TransferResult, error) {
	m := domain.Transfer{FromAccountID: arg.FromAccountID, ToAccountID: arg.ToAccountID}

	t, accounts, err := s.post(ctx, m, arg.Amount, arg.Description)
	if err != nil {
		return domain.TransferResult{}, err
	}

	result := domain.TransferResult{Transaction: t}

	for _, a := range accounts {
		switch a.ID {
		case arg.FromAccountID:
			result.FromAccount = a
		case arg.ToAccountID:
			result.ToAccount = a
		}
	}

	return result, nil
}

// post validates the movement and applies it in a unit, retrying retryable failures.
func (s *Service) post(ctx context.Context, m domain.Movement, amount decimal.Decimal, description string) (domain.Transaction, []domain.Account, error) {
	l := zerolog.Ctx(ctx).With().
		Str("kind", string(m.Kind())).
		Int64("account_id", m.Source()).
		Str("amount", amount.String()).
		Logger()

	if err := policy.ValidAmount(m.Kind(), amount); err != nil {
		l.Info().Err(err).Msg("operation rejected")
		return domain.Transaction{}, nil, err
	}

	if err := policy.ValidMovement(m); err != nil {
		l.Info().Err(err).Msg("operation rejected")
		return domain.Transaction{}, nil, err
	}

	var (
		record   domain.Transaction
		accounts []domain.Account
	)

	err := s.retry(ctx, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, u domain.Unit) error {
			var err error
			record, accounts, err = apply(ctx, u, m, amount, description)

			return err
		})
	})
	if err != nil {
		logFailure(&l, err)
		return domain.Transaction{}, nil, err
	}

	l.Info().Int64("transaction_id", record.ID).Msg("operation committed")

	return record, accounts, nil
}

// apply runs inside the unit. Every check completes before the first write.
func apply(ctx context.Context, u domain.Unit, m domain.Movement, amount decimal.Decimal, description string) (domain.Transaction, []domain.Account, error) {
	ids := m.AccountIDs()

	locked, err := u.LockAccounts(ctx, ids...)
	if err != nil {
		return domain.Transaction{}, nil, err
	}

	if len(locked) != len(ids) {
		return domain.Transaction{}, nil, domain.ErrAccountNotFound
	}

	for _, a := range locked {
		if !policy.AccountEligible(a) {
			return domain.Transaction{}, nil, domain.ErrAccountNotActive
		}
	}

	balances := make([]decimal.Decimal, len(locked))

	for i, a := range locked {
		balances[i] = a.Balance.Add(m.Delta(a.ID, amount))
		if balances[i].IsNegative() {
			return domain.Transaction{}, nil, domain.ErrInsufficientFunds
		}
	}

	updated := make([]domain.Account, len(locked))

	for i, a := range locked {
		updated[i], err = u.UpdateBalance(ctx, domain.UpdateBalanceParams{
			ID:              a.ID,
			ExpectedVersion: a.Version,
			Balance:         balances[i],
		})
		if err != nil {
			return domain.Transaction{}, nil, err
		}
	}

	record, err := u.Append(ctx, domain.Transaction{
		Movement:    m,
		Amount:      amount,
		Description: description,
		Status:      domain.TransactionStatusCompleted,
	})
	if err != nil {
		return domain.Transaction{}, nil, err
	}

	return record, updated, nil
}

// retry runs op until it succeeds, fails with a non retryable error or the retries run out.
// Each attempt is bounded by the lock timeout.
func (s *Service) retry(ctx context.Context, op func(ctx context.Context) error) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.cfg.RetryBaseDelay
	eb.MaxInterval = 16 * s.cfg.RetryBaseDelay
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, s.cfg.MaxRetries), ctx)

	notify := func(err error, next time.Duration) {
		zerolog.Ctx(ctx).Warn().Err(err).Dur("retry_in", next).Msg("retrying ledger unit")
	}

	return backoff.RetryNotify(func() error {
		actx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
		defer cancel()

		err := op(actx)
		if err == nil || domain.IsRetryable(err) {
			return err
		}

		return backoff.Permanent(err)
	}, b, notify)
}

func logFailure(l *zerolog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrAccountNotFound),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidStatusTransition),
		errors.Is(err, domain.ErrBalanceNotZero),
		errors.Is(err, context.Canceled):
		l.Info().Err(err).Msg("operation rejected")
	default:
		l.Error().Err(err).Msg("operation failed, unit rolled back")
	}
}
