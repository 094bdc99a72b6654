// Package memory is an in-process Ledger Store. Each wallet has its own
// mutex, so writes to one wallet serialize while different wallets proceed
// in parallel. State is lost on exit; it backs tests and local runs without
// a database.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"

	"github.com/google/uuid"
)

type account struct {
	mu     sync.Mutex
	wallet domain.Wallet
	txs    []domain.Transaction // oldest first
}

// Store implements ledger.Store and the user store used by the API.
type Store struct {
	mu       sync.RWMutex // guards the maps, not the accounts
	users    map[string]domain.User
	emails   map[string]string
	accounts map[string]*account
	now      func() time.Time
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]domain.User),
		emails:   make(map[string]string),
		accounts: make(map[string]*account),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var _ ledger.Store = (*Store)(nil)

// CreateUserWithWallet stores user together with an empty wallet.
func (s *Store) CreateUserWithWallet(_ context.Context, user domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(user.Email)
	if _, exists := s.emails[email]; exists {
		return domain.User{}, domain.ErrEmailTaken
	}
	user.Email = email
	s.users[user.ID] = user
	s.emails[email] = user.ID
	s.accounts[user.ID] = &account{wallet: domain.NewWallet(user.ID, user.CreatedAt)}
	return user, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[strings.ToLower(email)]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return s.users[id], nil
}

func (s *Store) UserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) account(userID string) (*account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[userID]
	if !ok {
		return nil, ledger.ErrWalletNotFound
	}
	return acc, nil
}

func (s *Store) ApplyCredit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	return s.apply(ctx, userID, domain.TransactionCredit, amount)
}

func (s *Store) ApplyDebit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	return s.apply(ctx, userID, domain.TransactionDebit, amount)
}

func (s *Store) apply(ctx context.Context, userID string, typ domain.TransactionType, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	acc, err := s.account(userID)
	if err != nil {
		return domain.Wallet{}, domain.Transaction{}, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()

	// An abandoned caller must not commit.
	if err := ctx.Err(); err != nil {
		return domain.Wallet{}, domain.Transaction{}, err
	}

	w := acc.wallet
	delta := amount.Decimal()
	if typ == domain.TransactionDebit {
		if w.Balance.LessThan(delta) {
			return domain.Wallet{}, domain.Transaction{}, ledger.ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(delta)
	} else {
		w.Balance = w.Balance.Add(delta)
		if !w.Balance.LessThan(domain.MaxAmount) {
			return domain.Wallet{}, domain.Transaction{}, ledger.ErrBalanceOutOfRange
		}
	}
	w.Version++
	w.UpdatedAt = domain.NextTimestamp(acc.wallet, s.now())

	tx := domain.Transaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      typ,
		Amount:    delta,
		Sequence:  w.Version,
		Timestamp: w.UpdatedAt,
	}
	acc.wallet = w
	acc.txs = append(acc.txs, tx)
	return w, tx, nil
}

func (s *Store) Wallet(_ context.Context, userID string) (domain.Wallet, error) {
	acc, err := s.account(userID)
	if err != nil {
		return domain.Wallet{}, err
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	return acc.wallet, nil
}

func (s *Store) History(_ context.Context, userID string) ([]domain.Transaction, error) {
	acc, err := s.account(userID)
	if err != nil {
		return []domain.Transaction{}, nil
	}
	acc.mu.Lock()
	defer acc.mu.Unlock()
	out := make([]domain.Transaction, 0, len(acc.txs))
	for i := len(acc.txs) - 1; i >= 0; i-- {
		out = append(out, acc.txs[i])
	}
	return out, nil
}
