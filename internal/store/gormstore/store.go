// Package gormstore is the GORM Ledger Store used with MySQL in production.
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/ledger"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MySQL error numbers that abort a transaction without committing anything.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// mysqlOutOfRange is raised by strict mode when a value overflows its column.
const mysqlOutOfRange = 1264

// Store implements ledger.Store on top of a *gorm.DB.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// New wraps db. The schema must already exist (see db.Migrate).
func New(db *gorm.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var _ ledger.Store = (*Store)(nil)

// Ping checks the underlying connection pool.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// CreateUserWithWallet inserts the user and its empty wallet in one transaction.
func (s *Store) CreateUserWithWallet(ctx context.Context, user domain.User) (domain.User, error) {
	user.Email = strings.ToLower(user.Email)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&user).Error; err != nil {
			return err
		}
		wallet := domain.NewWallet(user.ID, user.CreatedAt)
		return tx.Create(&wallet).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.User{}, domain.ErrEmailTaken
	}
	if err != nil {
		return domain.User{}, classify(err)
	}
	return user, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.findUser(ctx, "email = ?", strings.ToLower(email))
}

func (s *Store) UserByID(ctx context.Context, id string) (domain.User, error) {
	return s.findUser(ctx, "id = ?", id)
}

func (s *Store) findUser(ctx context.Context, query string, arg any) (domain.User, error) {
	var u domain.User
	err := s.db.WithContext(ctx).Where(query, arg).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, classify(err)
	}
	return u, nil
}

func (s *Store) ApplyCredit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	return s.apply(ctx, userID, domain.TransactionCredit, amount)
}

func (s *Store) ApplyDebit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	return s.apply(ctx, userID, domain.TransactionDebit, amount)
}

func (s *Store) apply(ctx context.Context, userID string, typ domain.TransactionType, amount domain.Amount) (domain.Wallet, domain.Transaction, error) {
	var (
		wallet domain.Wallet
		record domain.Transaction
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// SELECT ... FOR UPDATE holds the wallet row until commit.
		var current domain.Wallet
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			Take(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ledger.ErrWalletNotFound
		}
		if err != nil {
			return err
		}

		delta := amount.Decimal()
		next := current
		balanceExpr := gorm.Expr("balance + ?", delta)
		if typ == domain.TransactionDebit {
			if current.Balance.LessThan(delta) {
				return ledger.ErrInsufficientFunds
			}
			balanceExpr = gorm.Expr("balance - ?", delta)
			next.Balance = current.Balance.Sub(delta)
		} else {
			next.Balance = current.Balance.Add(delta)
			if !next.Balance.LessThan(domain.MaxAmount) {
				return ledger.ErrBalanceOutOfRange
			}
		}
		next.Version = current.Version + 1
		next.UpdatedAt = domain.NextTimestamp(current, s.now())

		// The version guard turns the update into a compare-and-swap on
		// dialects without row locks; the balance guard keeps it non-negative.
		q := tx.Model(&domain.Wallet{}).Where("user_id = ? AND version = ?", userID, current.Version)
		if typ == domain.TransactionDebit {
			q = q.Where("balance >= ?", delta)
		}
		res := q.Updates(map[string]any{
			"balance":    balanceExpr,
			"version":    next.Version,
			"updated_at": next.UpdatedAt,
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return ledger.ErrTransactionAborted
		}

		rec := domain.Transaction{
			ID:        uuid.NewString(),
			UserID:    userID,
			Type:      typ,
			Amount:    delta,
			Sequence:  next.Version,
			Timestamp: next.UpdatedAt,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return err
		}
		wallet, record = next, rec
		return nil
	})
	if err != nil {
		return domain.Wallet{}, domain.Transaction{}, classify(err)
	}
	return wallet, record, nil
}

func (s *Store) Wallet(ctx context.Context, userID string) (domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Wallet{}, ledger.ErrWalletNotFound
	}
	if err != nil {
		return domain.Wallet{}, classify(err)
	}
	return w, nil
}

func (s *Store) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs := []domain.Transaction{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("sequence desc").
		Find(&txs).Error
	if err != nil {
		return nil, classify(err)
	}
	return txs, nil
}

// classify maps driver errors onto the ledger error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ledger.ErrWalletNotFound),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrBalanceOutOfRange),
		errors.Is(err, ledger.ErrTransactionAborted),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %w", ledger.ErrTransactionAborted, err)
		case mysqlOutOfRange:
			return fmt.Errorf("%w: %w", ledger.ErrBalanceOutOfRange, err)
		}
	}
	// SQLite reports writer contention only through the message.
	if strings.Contains(err.Error(), "database is locked") {
		return fmt.Errorf("%w: %w", ledger.ErrTransactionAborted, err)
	}
	return fmt.Errorf("%w: %w", ledger.ErrStoreUnavailable, err)
}
