package ledger

import (
	"context"
	"errors"

	"wallet_ledger/internal/domain"
)

var (
	// ErrWalletNotFound means an authenticated user has no wallet. Wallets are
	// created with their user, so this is an invariant breach, not a client error.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrInsufficientFunds rejects a debit larger than the balance at the
	// point the debit was serialized. Nothing is written.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrBalanceOutOfRange rejects a credit that would take the balance to
	// domain.MaxAmount or beyond. Nothing is written.
	ErrBalanceOutOfRange = errors.New("balance would exceed the maximum wallet balance")

	// ErrTransactionAborted is a transient store conflict (deadlock,
	// serialization failure). Nothing was committed; the operation may be retried.
	ErrTransactionAborted = errors.New("transaction aborted")

	// ErrStoreUnavailable wraps any other store failure.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Reason codes returned by Reason.
const (
	ReasonInvalidAmount      = "invalid_amount"
	ReasonWalletNotFound     = "wallet_not_found"
	ReasonInsufficientFunds  = "insufficient_funds"
	ReasonBalanceOutOfRange  = "balance_out_of_range"
	ReasonTransactionAborted = "transaction_aborted"
	ReasonStoreUnavailable   = "store_unavailable"
	ReasonCanceled           = "canceled"
	ReasonInternal           = "internal"
)

// Reason classifies err into a stable, machine readable code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, domain.ErrInvalidAmount):
		return ReasonInvalidAmount
	case errors.Is(err, ErrWalletNotFound):
		return ReasonWalletNotFound
	case errors.Is(err, ErrInsufficientFunds):
		return ReasonInsufficientFunds
	case errors.Is(err, ErrBalanceOutOfRange):
		return ReasonBalanceOutOfRange
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, ErrTransactionAborted):
		return ReasonTransactionAborted
	case errors.Is(err, ErrStoreUnavailable):
		return ReasonStoreUnavailable
	default:
		return ReasonInternal
	}
}
