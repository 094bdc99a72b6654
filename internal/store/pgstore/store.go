// Package pgstore is a Ledger Store for PostgreSQL built directly on pgx.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

//go:embed schema.sql
var schema string

// SQLSTATE codes.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeUniqueViolation      = "23505"
	codeNumericOutOfRange    = "22003"
)

// Store implements ledger.Store on a pgx connection pool.
type Store struct {
	db  *pgxpool.Pool
	now func() time.Time
}

// New wraps an open pool.
func New(db *pgxpool.Pool) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ ledger.Store = (*Store)(nil)

// Connect parses url, opens a pool and pings it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// Migrate creates the schema if it does not exist.
func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// CreateUserWithWallet inserts the user and its empty wallet in one transaction.
func (s *Store) CreateUserWithWallet(ctx context.Context, user domain.User) (domain.User, error) {
	id, err := uuid.Parse(user.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("user id: %w", err)
	}
	user.Email = strings.ToLower(user.Email)

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.User{}, classify(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	if _, err := tx.Exec(ctx, `INSERT INTO users (id, name, email, password_hash, created_at)
        VALUES ($1, $2, $3, $4, $5)`, id, user.Name, user.Email, user.PasswordHash, user.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation {
			return domain.User{}, domain.ErrEmailTaken
		}
		return domain.User{}, classify(err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO wallets (user_id, balance, version, updated_at)
        VALUES ($1, 0, 0, $2)`, id, user.CreatedAt); err != nil {
		return domain.User{}, classify(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRow(ctx, `SELECT id, name, email, password_hash, created_at
        FROM users WHERE email = $1`, strings.ToLower(email))
	return scanUser(row)
}

func (s *Store) UserByID(ctx context.Context, id string) (domain.User, error) {
	uid, err := uuid.Parse(id)
	if err != nil {
		return domain.User{}, domain.ErrUserNotFound
	}
	row := s.db.QueryRow(ctx, `SELECT id, name, email, password_hash, created_at
        FROM users WHERE id = $1`, uid)
	return scanUser(row)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u  domain.User
		id uuid.UUID
	)
	if err := row.Scan(&id, &u.Name, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, classify(err)
	}
	u.ID = id.String()
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) ApplyCredit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	return s.apply(ctx, userID, domain.TransactionCredit, amount)
}

func (s *Store) ApplyDebit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	return s.apply(ctx, userID, domain.TransactionDebit, amount)
}

func (s *Store) apply(ctx context.Context, userID string, typ domain.TransactionType, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return domain.Wallet{}, domain.Transaction{}, ledger.ErrWalletNotFound
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.Wallet{}, domain.Transaction{}, classify(err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	current, err := lockWallet(ctx, tx, uid)
	if err != nil {
		return domain.Wallet{}, domain.Transaction{}, classify(err)
	}

	delta := amount.Decimal()
	next := current
	if typ == domain.TransactionDebit {
		if current.Balance.LessThan(delta) {
			return domain.Wallet{}, domain.Transaction{}, ledger.ErrInsufficientFunds
		}
		next.Balance = current.Balance.Sub(delta)
	} else {
		next.Balance = current.Balance.Add(delta)
		if !next.Balance.LessThan(domain.MaxAmount) {
			return domain.Wallet{}, domain.Transaction{}, ledger.ErrBalanceOutOfRange
		}
	}
	next.Version = current.Version + 1
	next.UpdatedAt = domain.NextTimestamp(current, s.now())

	if _, err := tx.Exec(ctx, `UPDATE wallets SET balance = $2::text::numeric, version = $3, updated_at = $4
        WHERE user_id = $1`, uid, next.Balance.StringFixed(domain.AmountScale), next.Version, next.UpdatedAt); err != nil {
		return domain.Wallet{}, domain.Transaction{}, classify(err)
	}

	txID := uuid.New()
	rec := domain.Transaction{
		ID:        txID.String(),
		UserID:    userID,
		Type:      typ,
		Amount:    delta,
		Sequence:  next.Version,
		Timestamp: next.UpdatedAt,
	}
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, user_id, type, amount, sequence, timestamp)
        VALUES ($1, $2, $3, $4::text::numeric, $5, $6)`, txID, uid, string(rec.Type), amount.String(), rec.Sequence, rec.Timestamp); err != nil {
		return domain.Wallet{}, domain.Transaction{}, classify(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.Wallet{}, domain.Transaction{}, classify(err)
	}
	return next, rec, nil
}

func lockWallet(ctx context.Context, tx pgx.Tx, uid uuid.UUID) (domain.Wallet, error) {
	const query = `SELECT balance::text, version, updated_at FROM wallets WHERE user_id = $1 FOR UPDATE`
	w, err := scanWallet(tx.QueryRow(ctx, query, uid))
	if err != nil {
		return domain.Wallet{}, err
	}
	w.UserID = uid.String()
	return w, nil
}

func scanWallet(row pgx.Row) (domain.Wallet, error) {
	var (
		w       domain.Wallet
		balance string
	)
	if err := row.Scan(&balance, &w.Version, &w.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Wallet{}, ledger.ErrWalletNotFound
		}
		return domain.Wallet{}, err
	}
	d, err := decimal.NewFromString(balance)
	if err != nil {
		return domain.Wallet{}, fmt.Errorf("decode balance %q: %w", balance, err)
	}
	w.Balance = d
	w.UpdatedAt = w.UpdatedAt.UTC()
	return w, nil
}

func (s *Store) Wallet(ctx context.Context, userID string) (domain.Wallet, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return domain.Wallet{}, ledger.ErrWalletNotFound
	}
	w, err := scanWallet(s.db.QueryRow(ctx, `SELECT balance::text, version, updated_at FROM wallets WHERE user_id = $1`, uid))
	if err != nil {
		return domain.Wallet{}, classify(err)
	}
	w.UserID = userID
	return w, nil
}

func (s *Store) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	uid, err := uuid.Parse(userID)
	if err != nil {
		return txs, nil
	}
	rows, err := s.db.Query(ctx, `SELECT id, type, amount::text, sequence, timestamp
        FROM transactions WHERE user_id = $1 ORDER BY sequence DESC`, uid)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			t      domain.Transaction
			id     uuid.UUID
			typ    string
			amount string
		)
		if err := rows.Scan(&id, &typ, &amount, &t.Sequence, &t.Timestamp); err != nil {
			return nil, classify(err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("decode amount %q: %w", amount, err)
		}
		t.ID = id.String()
		t.UserID = userID
		t.Type = domain.TransactionType(typ)
		t.Amount = d
		t.Timestamp = t.Timestamp.UTC()
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return txs, nil
}

func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBalanceOutOfRange),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
			return fmt.Errorf("%w: %w", ledger.ErrTransactionAborted, err)
		case codeNumericOutOfRange:
			return fmt.Errorf("%w: %w", ledger.ErrBalanceOutOfRange, err)
		}
	}
	return fmt.Errorf("%w: %w", ledger.ErrStoreUnavailable, err)
}
