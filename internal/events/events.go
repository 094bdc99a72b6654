// Package events publishes committed ledger changes to downstream consumers.
package events

import (
	"context"
	"time"

	"wallet_ledger/internal/domain"

	"github.com/shopspring/decimal"
)

// TransactionRecorded is emitted once per committed credit or debit.
type TransactionRecorded struct {
	TransactionID string                 `json:"transaction_id"`
	UserID        string                 `json:"user_id"`
	Type          domain.TransactionType `json:"type"`
	Amount        decimal.Decimal        `json:"amount"`
	Balance       decimal.Decimal        `json:"balance"`
	Sequence      int64                  `json:"sequence"`
	OccurredAt    time.Time              `json:"occurred_at"`
}

// NewTransactionRecorded builds the event for a committed transaction and
// the wallet state it produced.
func NewTransactionRecorded(tx domain.Transaction, w domain.Wallet) TransactionRecorded {
	return TransactionRecorded{
		TransactionID: tx.ID,
		UserID:        tx.UserID,
		Type:          tx.Type,
		Amount:        tx.Amount,
		Balance:       w.Balance,
		Sequence:      tx.Sequence,
		OccurredAt:    tx.Timestamp,
	}
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, event TransactionRecorded) error
}

// Noop discards every event.
type Noop struct{}

func (Noop) Publish(context.Context, TransactionRecorded) error { return nil }
