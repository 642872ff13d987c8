package ledgerservice

import (
	"context"
	"iter"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// OpenAccount opens an ACTIVE account with zero balance for the owner.
func (s *Service) OpenAccount(ctx context.Context, ownerID int64, kind domain.AccountKind) (domain.Account, error) {
	l := zerolog.Ctx(ctx)

	if !kind.Valid() {
		return domain.Account{}, domain.ErrInvalidAccountKind
	}

	a, err := s.store.CreateAccount(ctx, domain.CreateAccountParams{
		OwnerID: ownerID,
		Kind:    kind,
	})
	if err != nil {
		l.Error().Err(err).Send()
		return domain.Account{}, err
	}

	l.Info().Int64("account_id", a.ID).Str("number", a.Number).Msg("account opened")

	return a, nil
}

// GetAccount returns the account with the given id.
func (s *Service) GetAccount(ctx context.Context, id int64) (domain.Account, bool, error) {
	a, ok, err := s.store.GetAccount(ctx, id)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return domain.Account{}, false, err
	}

	return a, ok, nil
}

// GetAccountByNumber returns the account with the given account number.
func (s *Service) GetAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error) {
	a, ok, err := s.store.GetAccountByNumber(ctx, number)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return domain.Account{}, false, err
	}

	return a, ok, nil
}

// ListAccounts returns the owner's accounts ordered by id.
func (s *Service) ListAccounts(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	accounts, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return nil, err
	}

	return accounts, nil
}

// GetBalance returns the committed balance of the account.
// It never observes a balance written by a unit that has not committed.
func (s *Service) GetBalance(ctx context.Context, id int64) (decimal.Decimal, bool, error) {
	a, ok, err := s.GetAccount(ctx, id)
	if err != nil || !ok {
		return decimal.Zero, ok, err
	}

	return a.Balance, true, nil
}

// History returns the records touching the account, newest first.
// A non positive or too large limit falls back to the configured limit.
func (s *Service) History(ctx context.Context, accountID int64, limit int) iter.Seq2[domain.Transaction, error] {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}

	return s.store.History(ctx, accountID, limit)
}

// GetTransaction returns the record with the given id.
func (s *Service) GetTransaction(ctx context.Context, id int64) (domain.Transaction, bool, error) {
	t, ok, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Send()
		return domain.Transaction{}, false, err
	}

	return t, ok, nil
}

// Freeze stops an ACTIVE account from taking part in operations.
func (s *Service) Freeze(ctx context.Context, id int64) (domain.Account, error) {
	return s.changeStatus(ctx, id, domain.AccountStatusFrozen)
}

// Unfreeze returns a FROZEN account to ACTIVE.
func (s *Service) Unfreeze(ctx context.Context, id int64) (domain.Account, error) {
	return s.changeStatus(ctx, id, domain.AccountStatusActive)
}

// Close closes an account with zero balance. CLOSED is terminal.
func (s *Service) Close(ctx context.Context, id int64) (domain.Account, error) {
	return s.changeStatus(ctx, id, domain.AccountStatusClosed)
}

func (s *Service) changeStatus(ctx context.Context, id int64, next domain.AccountStatus) (domain.Account, error) {
	l := zerolog.Ctx(ctx).With().Int64("account_id", id).Str("status", string(next)).Logger()

	var updated domain.Account

	err := s.retry(ctx, func(ctx context.Context) error {
		return s.store.Atomic(ctx, func(ctx context.Context, u domain.Unit) error {
			locked, err := u.LockAccounts(ctx, id)
			if err != nil {
				return err
			}

			if len(locked) == 0 {
				return domain.ErrAccountNotFound
			}

			a := locked[0]

			if !a.Status.CanTransitionTo(next) {
				return domain.ErrInvalidStatusTransition
			}

			if next == domain.AccountStatusClosed && !a.Balance.IsZero() {
				return domain.ErrBalanceNotZero
			}

			updated, err = u.UpdateStatus(ctx, domain.UpdateStatusParams{
				ID:              a.ID,
				ExpectedVersion: a.Version,
				Status:          next,
			})

			return err
		})
	})
	if err != nil {
		logFailure(&l, err)
		return domain.Account{}, err
	}

	l.Info().Msg("account status changed")

	return updated, nil
}
