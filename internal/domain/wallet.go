package domain

import (
	"time" // Last mutation timestamp

	"github.com/shopspring/decimal" // Fixed-point balance
)

// Wallet Model
type Wallet struct {
	UserID    string          `gorm:"type:char(36);primaryKey" json:"user_id"`              // Owner, one wallet per user
	Balance   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"` // Current balance, never negative
	Version   int64           `gorm:"not null;default:0" json:"version"`                    // Number of committed mutations
	UpdatedAt time.Time       `json:"updated_at"`                                           // Time of the last mutation
}

// NewWallet returns the empty wallet created alongside a user.
func NewWallet(userID string, now time.Time) Wallet {
	return Wallet{UserID: userID, Balance: decimal.Zero, UpdatedAt: now}
}
