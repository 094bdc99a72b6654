package domain

import (
	"time" // Transaction timestamp

	"github.com/shopspring/decimal" // Fixed-point amount
)

// TransactionType is the direction of a balance change.
type TransactionType string

const (
	TransactionCredit TransactionType = "credit"
	TransactionDebit  TransactionType = "debit"
)

// Transaction Model. Rows are append-only: written once in the same store
// transaction as the balance change they record and never updated.
type Transaction struct {
	ID        string          `gorm:"type:char(36);primaryKey" json:"id"`                                          // UUID primary key
	UserID    string          `gorm:"type:char(36);not null;uniqueIndex:idx_transactions_user_seq" json:"user_id"` // Owning wallet
	Type      TransactionType `gorm:"type:varchar(6);not null" json:"type"`                                        // credit or debit
	Amount    decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"amount"`                                   // Strictly positive
	Sequence  int64           `gorm:"not null;uniqueIndex:idx_transactions_user_seq" json:"sequence"`              // Wallet version after this change
	Timestamp time.Time       `gorm:"not null;index" json:"timestamp"`                                             // Never decreases per wallet
}

// NextTimestamp returns now, unless the wallet was last touched later (clock
// skew between writers), in which case the wallet time is reused.
func NextTimestamp(w Wallet, now time.Time) time.Time {
	if now.Before(w.UpdatedAt) {
		return w.UpdatedAt
	}
	return now
}
