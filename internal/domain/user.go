package domain

import "time" // Creation timestamps

// User Model
type User struct {
	ID           string        `gorm:"type:char(36);primaryKey" json:"id"`                                       // UUID primary key
	Name         string        `gorm:"size:120;not null" json:"name"`                                            // Display name
	Email        string        `gorm:"size:191;uniqueIndex;not null" json:"email"`                               // Unique, lower-cased email
	PasswordHash string        `gorm:"not null" json:"-"`                                                        // bcrypt hash, never serialized
	CreatedAt    time.Time     `json:"created_at"`                                                               // Registration time
	Wallet       *Wallet       `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"` // One-to-one wallet
	Transactions []Transaction `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"-"` // Ledger rows
}

// NewUser builds a user ready to be stored with its wallet.
func NewUser(id, name, email, passwordHash string, now time.Time) User {
	return User{ID: id, Name: name, Email: email, PasswordHash: passwordHash, CreatedAt: now}
}
