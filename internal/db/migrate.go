package db

import (
	"fmt" // Error wrapping

	"wallet_ledger/internal/domain" // Importing domain models

	"gorm.io/gorm" // GORM ORM library
)

// Migrate creates or updates the users, wallets and transactions tables
func Migrate(db *gorm.DB) error {
	// AutoMigrate will create tables, missing foreign keys, constraints, columns and indexes
	if err := db.AutoMigrate(&domain.User{}, &domain.Wallet{}, &domain.Transaction{}); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}
