package api

import (
	"encoding/json" // Fixed-scale numbers on the wire
	"net/http"      // HTTP status codes
	"time"          // Timestamps

	"wallet_ledger/internal/domain"     // Domain models
	"wallet_ledger/internal/ledger"     // Error reasons
	"wallet_ledger/internal/middleware" // Request id key

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
)

// Response is the envelope of every JSON reply
type Response struct {
	Success bool   `json:"success"`          // Whether the operation succeeded
	Message string `json:"message"`          // Human readable outcome
	Reason  string `json:"reason,omitempty"` // Machine readable failure reason
	Data    any    `json:"data,omitempty"`   // Payload on success
}

// WalletResponse is the public view of a wallet
type WalletResponse struct {
	UserID    string      `json:"user_id"`    // Owner
	Balance   json.Number `json:"balance"`    // Two decimal places
	UpdatedAt time.Time   `json:"updated_at"` // Last mutation
}

// TransactionResponse is the public view of a ledger entry
type TransactionResponse struct {
	ID        string                 `json:"id"`        // Transaction id
	Type      domain.TransactionType `json:"type"`      // credit or debit
	Amount    json.Number            `json:"amount"`    // Two decimal places
	Sequence  int64                  `json:"sequence"`  // Position in the wallet ledger
	Timestamp time.Time              `json:"timestamp"` // Commit time
}

func newWalletResponse(w domain.Wallet) WalletResponse {
	return WalletResponse{
		UserID:    w.UserID,
		Balance:   json.Number(w.Balance.StringFixed(domain.AmountScale)),
		UpdatedAt: w.UpdatedAt,
	}
}

func newTransactionResponses(txs []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, TransactionResponse{
			ID:        t.ID,
			Type:      t.Type,
			Amount:    json.Number(t.Amount.StringFixed(domain.AmountScale)),
			Sequence:  t.Sequence,
			Timestamp: t.Timestamp,
		})
	}
	return out
}

func success(c *gin.Context, status int, message string, data any) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Message: message})
}

// StatusFor maps a ledger reason onto an HTTP status
func StatusFor(reason string) int {
	switch reason {
	case ledger.ReasonInvalidAmount:
		return http.StatusBadRequest
	case ledger.ReasonInsufficientFunds, ledger.ReasonBalanceOutOfRange:
		return http.StatusUnprocessableEntity
	case ledger.ReasonTransactionAborted, ledger.ReasonStoreUnavailable, ledger.ReasonCanceled:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError // wallet_not_found is an invariant breach
	}
}

// failLedger answers a ledger error with its status, reason and a safe message
func failLedger(c *gin.Context, log logrus.FieldLogger, err error) {
	reason := ledger.Reason(err)
	status := StatusFor(reason)
	message := err.Error()
	switch reason {
	case ledger.ReasonInvalidAmount, ledger.ReasonInsufficientFunds, ledger.ReasonBalanceOutOfRange:
		// Client faults keep their own message
	case ledger.ReasonWalletNotFound:
		message = "Wallet not found for this user"
	case ledger.ReasonTransactionAborted, ledger.ReasonStoreUnavailable:
		message = "Service temporarily unavailable, please retry"
	case ledger.ReasonCanceled:
		message = "Request canceled"
	default:
		message = "Internal server error"
	}
	if status >= http.StatusInternalServerError {
		log.WithFields(logrus.Fields{
			"user_id":    c.GetString(middleware.UserIDKey),    // Caller
			"request_id": c.GetString(middleware.RequestIDKey), // Correlation id
			"reason":     reason,                               // Classified reason
		}).WithError(err).Error("Wallet request failed")
	}
	c.JSON(status, Response{Success: false, Message: message, Reason: reason})
}
