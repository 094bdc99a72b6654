package api

import (
	"context"       // Ledger calls
	"encoding/json" // Raw amount capture
	"errors"        // Error inspection
	"io"            // Empty bodies
	"net/http"      // HTTP status codes

	"wallet_ledger/internal/domain"     // Amount validation
	"wallet_ledger/internal/middleware" // Context keys

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Ledger is the wallet engine as seen by the handlers
type Ledger interface {
	Credit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, error)
	Debit(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, error)
	Balance(ctx context.Context, userID string) (domain.Wallet, error)
	History(ctx context.Context, userID string) ([]domain.Transaction, error)
}

// AmountRequest carries the untrusted amount until it is validated
type AmountRequest struct {
	Amount json.RawMessage `json:"amount"` // Number or numeric string
}

type mutateFunc func(ctx context.Context, userID string, amount domain.Amount) (domain.Wallet, error)

// CreditHandler adds funds to the caller's wallet
func CreditHandler(l Ledger, log logrus.FieldLogger) gin.HandlerFunc {
	return mutateHandler(l.Credit, "Wallet credited successfully", log)
}

// DebitHandler removes funds from the caller's wallet
func DebitHandler(l Ledger, log logrus.FieldLogger) gin.HandlerFunc {
	return mutateHandler(l.Debit, "Wallet debited successfully", log)
}

func mutateHandler(apply mutateFunc, message string, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(middleware.UserIDKey) // Set by the auth middleware
		if userID == "" {
			fail(c, http.StatusInternalServerError, "User ID not found in request")
			return
		}
		var req AmountRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			fail(c, http.StatusBadRequest, "Invalid request body")
			return
		}
		amount, err := domain.ValidateAmount(req.Amount)
		if err != nil {
			failLedger(c, log, err)
			return
		}
		wallet, err := apply(c.Request.Context(), userID, amount)
		if err != nil {
			failLedger(c, log, err)
			return
		}
		success(c, http.StatusOK, message, newWalletResponse(wallet))
	}
}

// BalanceHandler returns the caller's current balance
func BalanceHandler(l Ledger, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := l.Balance(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			failLedger(c, log, err)
			return
		}
		success(c, http.StatusOK, "Wallet balance fetched successfully", newWalletResponse(wallet))
	}
}

// TransactionsHandler returns the caller's ledger, most recent first
func TransactionsHandler(l Ledger, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		txs, err := l.History(c.Request.Context(), c.GetString(middleware.UserIDKey))
		if err != nil {
			failLedger(c, log, err)
			return
		}
		success(c, http.StatusOK, "Transaction history fetched successfully", newTransactionResponses(txs))
	}
}
