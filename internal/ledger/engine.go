// Package ledger keeps each wallet's balance equal to the sum of its
// recorded transactions under concurrent credits and debits.
package ledger

import (
	"context"
	"errors"
	"time"

	"wallet_ledger/internal/domain"
	"wallet_ledger/internal/events"

	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 10 * time.Millisecond
	publishTimeout     = 2 * time.Second
)

// Engine runs credits, debits and reads against a Store. It holds no wallet
// state of its own; every call re-reads inside the store transaction.
type Engine struct {
	store       Store
	publisher   events.Publisher
	log         logrus.FieldLogger
	maxAttempts int
	backoff     time.Duration
}

// Option configures an Engine.
type Option func(*Engine)

// WithPublisher sets where committed transactions are announced.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

// WithLogger sets the engine logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMaxAttempts bounds how many times a transiently aborted mutation runs.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the base delay between attempts; attempt n waits n*d.
func WithBackoff(d time.Duration) Option {
	return func(e *Engine) { e.backoff = d }
}

// NewEngine builds an engine over store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		publisher:   events.Noop{},
		log:         logrus.StandardLogger(),
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type applyFunc func(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error)

// Credit adds amount to the user's wallet and records a credit transaction.
// It fails with ErrBalanceOutOfRange when the new balance would reach
// domain.MaxAmount.
func (e *Engine) Credit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, error) {
	return e.apply(ctx, domain.TransactionCredit, userID, amount, e.store.ApplyCredit)
}

// Debit removes amount from the user's wallet and records a debit
// transaction. It fails with ErrInsufficientFunds, writing nothing, when the
// balance at the serialization point is smaller than amount.
func (e *Engine) Debit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, error) {
	return e.apply(ctx, domain.TransactionDebit, userID, amount, e.store.ApplyDebit)
}

// Balance returns the user's current wallet.
func (e *Engine) Balance(ctx context.Context, userID string) (domain.Wallet, error) {
	return e.store.Wallet(ctx, userID)
}

// History returns the user's transactions, most recent first. A wallet
// without transactions yields an empty slice.
func (e *Engine) History(ctx context.Context, userID string) ([]domain.Transaction, error) {
	txs, err := e.store.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []domain.Transaction{}
	}
	return txs, nil
}

func (e *Engine) apply(ctx context.Context, op domain.TransactionType, userID string, amount domain.Amount, fn applyFunc) (domain.Wallet, error) {
	if amount.IsZero() {
		return domain.Wallet{}, domain.ErrAmountNotPositive
	}
	fields := logrus.Fields{"user_id": userID, "type": op, "amount": amount.String()}

	var (
		wallet domain.Wallet
		tx     domain.Transaction
		err    error
	)
	for attempt := 1; ; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return domain.Wallet{}, ctxErr
		}
		wallet, tx, err = fn(ctx, userID, amount)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrTransactionAborted) || attempt >= e.maxAttempts {
			e.logFailure(fields, attempt, err)
			return domain.Wallet{}, err
		}
		e.log.WithFields(fields).WithField("attempt", attempt).WithError(err).Warn("ledger transaction aborted, retrying")
		if err := e.wait(ctx, attempt); err != nil {
			return domain.Wallet{}, err
		}
	}

	e.log.WithFields(fields).WithFields(logrus.Fields{
		"transaction_id": tx.ID,
		"balance":        wallet.Balance.StringFixed(domain.AmountScale),
		"sequence":       tx.Sequence,
	}).Info("ledger transaction committed")
	e.publish(ctx, tx, wallet)
	return wallet, nil
}

func (e *Engine) logFailure(fields logrus.Fields, attempt int, err error) {
	entry := e.log.WithFields(fields).WithField("attempt", attempt).WithError(err)
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		entry.Info("debit rejected")
	case errors.Is(err, ErrBalanceOutOfRange):
		entry.Info("credit rejected")
	case errors.Is(err, ErrWalletNotFound):
		entry.Error("wallet missing for authenticated user")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		entry.Warn("ledger transaction abandoned by caller")
	default:
		entry.Error("ledger transaction failed")
	}
}

func (e *Engine) wait(ctx context.Context, attempt int) error {
	if e.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(time.Duration(attempt) * e.backoff)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// publish runs after commit, so a failure is logged and never surfaced.
func (e *Engine) publish(ctx context.Context, tx domain.Transaction, w domain.Wallet) {
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.publisher.Publish(pubCtx, events.NewTransactionRecorded(tx, w)); err != nil {
		e.log.WithFields(logrus.Fields{
			"transaction_id": tx.ID,
			"user_id":        tx.UserID,
		}).WithError(err).Error("failed to publish transaction event")
	}
}
