package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"gofinances/internal/core"
	"gofinances/internal/services"
)

type categoryResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type transactionResponse struct {
	ID         string           `json:"id"`
	Title      string           `json:"title"`
	Value      core.Money       `json:"value"`
	Type       string           `json:"type"`
	CategoryID string           `json:"category_id"`
	Category   categoryResponse `json:"category"`
}

type balanceResponse struct {
	Income  core.Money `json:"income"`
	Outcome core.Money `json:"outcome"`
	Total   core.Money `json:"total"`
}

type ledgerResponse struct {
	Transactions []transactionResponse `json:"transactions"`
	Balance      balanceResponse       `json:"balance"`
}

type queuedResponse struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func newTransactionResponse(v core.TransactionView) transactionResponse {
	return transactionResponse{
		ID:         v.ID,
		Title:      v.Title,
		Value:      v.Value,
		Type:       v.Type.String(),
		CategoryID: v.CategoryID,
		Category:   categoryResponse{ID: v.Category.ID, Title: v.Category.Title},
	}
}

func newTransactionResponses(views []core.TransactionView) []transactionResponse {
	out := make([]transactionResponse, len(views))
	for i, v := range views {
		out[i] = newTransactionResponse(v)
	}
	return out
}

func newLedgerResponse(l services.Ledger) ledgerResponse {
	return ledgerResponse{
		Transactions: newTransactionResponses(l.Transactions),
		Balance: balanceResponse{
			Income:  l.Balance.Income,
			Outcome: l.Balance.Outcome,
			Total:   l.Balance.Total,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Status: "error", Message: message})
}

// statusFor maps a service error to its HTTP status and client message.
// Internal failures never expose their cause.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case core.IsValidation(err):
		return http.StatusBadRequest, err.Error()
	case core.IsParse(err):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "request body too large"
	case errors.Is(err, core.ErrBalanceOverflow):
		return http.StatusUnprocessableEntity, core.ErrBalanceOverflow.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
