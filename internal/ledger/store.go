package ledger

import (
	"context"

	"wallet_ledger/internal/domain"
)

// Store is the durable home of wallets and their transactions.
//
// ApplyCredit and ApplyDebit each run as a single store transaction: the
// wallet row is locked, the debit sufficiency check runs against the locked
// balance, the balance and version are updated and the transaction row is
// inserted before commit. Either everything commits or nothing does.
//
// Transient conflicts must be reported as ErrTransactionAborted, a missing
// wallet as ErrWalletNotFound and other failures as ErrStoreUnavailable.
type Store interface {
	ApplyCredit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error)
	ApplyDebit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, domain.Transaction, error)
	Wallet(ctx context.Context, userID string) (domain.Wallet, error)
	// History returns the wallet's transactions, most recent first.
	History(ctx context.Context, userID string) ([]domain.Transaction, error)
}
