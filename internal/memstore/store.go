// Package memstore keeps accounts and the transaction log in process memory.
//
// Accounts are locked one by one in ascending id order for the whole unit,
// writes are staged on the unit and become visible together on commit.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// Store is an in-memory implementation of the ledger persistence boundary.
type Store struct {
	mu        sync.RWMutex
	accounts  map[int64]domain.Account
	byNumber  map[string]int64
	log       []domain.Transaction
	accountID int64
	txID      int64

	locksMu sync.Mutex
	locks   map[int64]chan struct{}

	now func() time.Time
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		accounts: make(map[int64]domain.Account),
		byNumber: make(map[string]int64),
		locks:    make(map[int64]chan struct{}),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// CreateAccount opens an ACTIVE account with zero balance.
func (s *Store) CreateAccount(ctx context.Context, arg domain.CreateAccountParams) (domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.accountID++
	now := s.now()

	a := domain.Account{
		ID:        s.accountID,
		Number:    domain.AccountNumber(s.accountID),
		OwnerID:   arg.OwnerID,
		Kind:      arg.Kind,
		Status:    domain.AccountStatusActive,
		Balance:   decimal.Zero,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.accounts[a.ID] = a
	s.byNumber[a.Number] = a.ID

	return a, nil
}

// GetAccount returns the account with the given id.
func (s *Store) GetAccount(ctx context.Context, id int64) (domain.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[id]

	return a, ok, nil
}

// GetAccountByNumber returns the account with the given account number.
func (s *Store) GetAccountByNumber(ctx context.Context, number string) (domain.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Account{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byNumber[number]
	if !ok {
		return domain.Account{}, false, nil
	}

	return s.accounts[id], true, nil
}

// ListAccounts returns the accounts of the owner ordered by id.
func (s *Store) ListAccounts(ctx context.Context, ownerID int64) ([]domain.Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	items := []domain.Account{}

	for _, a := range s.accounts {
		if a.OwnerID == ownerID {
			items = append(items, a)
		}
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return items, nil
}

// GetTransaction returns the committed record with the given id.
func (s *Store) GetTransaction(ctx context.Context, id int64) (domain.Transaction, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.Transaction{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.log {
		if t.ID == id {
			return t, true, nil
		}
	}

	return domain.Transaction{}, false, nil
}

// History returns up to limit records touching the account, newest first.
//
// The log is read when the sequence is ranged over, every range starts over.
func (s *Store) History(ctx context.Context, accountID int64, limit int) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(domain.Transaction{}, err)
			return
		}

		if limit <= 0 {
			return
		}

		s.mu.RLock()
		matched := make([]domain.Transaction, 0, limit)

		for i := len(s.log) - 1; i >= 0 && len(matched) < limit; i-- {
			if s.log[i].Involves(accountID) {
				matched = append(matched, s.log[i])
			}
		}
		s.mu.RUnlock()

		for _, t := range matched {
			if !yield(t, nil) {
				return
			}
		}
	}
}

// Atomic runs fn with a fresh unit and commits its staged writes if fn succeeds.
//
// Nothing staged becomes visible when fn fails or ctx is done before commit.
func (s *Store) Atomic(ctx context.Context, fn func(ctx context.Context, u domain.Unit) error) error {
	u := &unit{
		store:    s,
		held:     map[int64]bool{},
		accounts: map[int64]domain.Account{},
		read:     map[int64]int64{},
	}
	defer u.release()

	if err := fn(ctx, u); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return lockErr(err)
	}

	return u.commit()
}

func (s *Store) lock(id int64) chan struct{} {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()

	ch, ok := s.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[id] = ch
	}

	return ch
}

func lockErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrConcurrencyConflict, err)
	}

	return err
}

type unit struct {
	store *Store

	order []int64
	held  map[int64]bool

	// staged account state and the version each account had when it was locked
	accounts map[int64]domain.Account
	read     map[int64]int64
	records  []domain.Transaction
}

func (u *unit) LockAccounts(ctx context.Context, ids ...int64) ([]domain.Account, error) {
	ids = append([]int64(nil), ids...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for i, id := range ids {
		if u.held[id] || (i > 0 && ids[i-1] == id) {
			continue
		}

		if n := len(u.order); n > 0 && u.order[n-1] > id {
			return nil, fmt.Errorf("lock order violation: account %d requested after %d", id, u.order[n-1])
		}

		select {
		case u.store.lock(id) <- struct{}{}:
		case <-ctx.Done():
			return nil, lockErr(ctx.Err())
		}

		u.held[id] = true
		u.order = append(u.order, id)
	}

	u.store.mu.RLock()
	defer u.store.mu.RUnlock()

	found := []domain.Account{}

	for i, id := range ids {
		if i > 0 && ids[i-1] == id {
			continue
		}

		if a, ok := u.accounts[id]; ok {
			found = append(found, a)
			continue
		}

		a, ok := u.store.accounts[id]
		if !ok {
			continue
		}

		u.accounts[id] = a
		u.read[id] = a.Version
		found = append(found, a)
	}

	return found, nil
}

func (u *unit) current(id int64) (domain.Account, error) {
	if !u.held[id] {
		return domain.Account{}, fmt.Errorf("account %d is not locked by the unit", id)
	}

	a, ok := u.accounts[id]
	if !ok {
		return domain.Account{}, domain.ErrAccountNotFound
	}

	return a, nil
}

func (u *unit) UpdateBalance(ctx context.Context, arg domain.UpdateBalanceParams) (domain.Account, error) {
	a, err := u.current(arg.ID)
	if err != nil {
		return domain.Account{}, err
	}

	if a.Version != arg.ExpectedVersion {
		return domain.Account{}, domain.ErrConcurrencyConflict
	}

	if arg.Balance.IsNegative() {
		return domain.Account{}, domain.ErrInsufficientFunds
	}

	a.Balance = arg.Balance
	a.Version++
	a.UpdatedAt = u.store.now()
	u.accounts[a.ID] = a

	return a, nil
}

func (u *unit) UpdateStatus(ctx context.Context, arg domain.UpdateStatusParams) (domain.Account, error) {
	a, err := u.current(arg.ID)
	if err != nil {
		return domain.Account{}, err
	}

	if a.Version != arg.ExpectedVersion {
		return domain.Account{}, domain.ErrConcurrencyConflict
	}

	a.Status = arg.Status
	a.Version++
	a.UpdatedAt = u.store.now()
	u.accounts[a.ID] = a

	return a, nil
}

func (u *unit) Append(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	if !t.Amount.IsPositive() {
		return domain.Transaction{}, domain.ErrInvalidAmount
	}

	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for _, id := range t.Movement.AccountIDs() {
		if _, ok := u.store.accounts[id]; !ok {
			return domain.Transaction{}, domain.ErrAccountNotFound
		}
	}

	// ids are handed out on append, rolled back units leave gaps like a sequence does
	u.store.txID++
	t.ID = u.store.txID
	t.CreatedAt = u.store.now()
	u.records = append(u.records, t)

	return t, nil
}

func (u *unit) commit() error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	for id, version := range u.read {
		if u.store.accounts[id].Version != version {
			return domain.ErrConcurrencyConflict
		}
	}

	for id, a := range u.accounts {
		u.store.accounts[id] = a
	}

	u.store.log = append(u.store.log, u.records...)

	return nil
}

func (u *unit) release() {
	for i := len(u.order) - 1; i >= 0; i-- {
		<-u.store.lock(u.order[i])
	}

	u.order = nil
	u.held = map[int64]bool{}
}
