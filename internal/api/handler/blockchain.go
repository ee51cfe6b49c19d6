// internal/api/handler/blockchain.go
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Uyoxy/NexaFx-backend/internal/api/types"
	"github.com/Uyoxy/NexaFx-backend/internal/stellar"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// AccountReader is the read-only slice of the settlement client exposed over
// HTTP. Both calls are idempotent and safely retryable.
type AccountReader interface {
	AccountExists(ctx context.Context, address string) (bool, error)
	GetBalances(ctx context.Context, address string) ([]stellar.AssetBalance, error)
}

// BlockchainHandler handles read-only ledger account queries.
type BlockchainHandler struct {
	accounts AccountReader
	logger   *slog.Logger
}

// NewBlockchainHandler creates a new BlockchainHandler.
func NewBlockchainHandler(accounts AccountReader, logger *slog.Logger) *BlockchainHandler {
	return &BlockchainHandler{
		accounts: accounts,
		logger:   logger,
	}
}

func (h *BlockchainHandler) respond(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("Failed to marshal JSON response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (h *BlockchainHandler) respondError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"
	switch {
	case util.IsError(err, util.ErrInvalidDestination):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrAccountNotFound):
		statusCode = http.StatusNotFound
		message = "Account not found"
	case util.IsError(err, util.ErrSettlementUnavailable):
		statusCode = http.StatusServiceUnavailable
		message = "Ledger network temporarily unavailable"
	default:
		h.logger.Error("Unhandled blockchain error", "error", err)
	}
	h.respond(w, statusCode, types.ErrorResponse{Error: message})
}

// AccountExists handles GET /blockchain/stellar/account/{address}/exists.
func (h *BlockchainHandler) AccountExists(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	exists, err := h.accounts.AccountExists(r.Context(), address)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]bool{"exists": exists})
}

// GetBalances handles GET /blockchain/stellar/account/{address}/balances.
func (h *BlockchainHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	balances, err := h.accounts.GetBalances(r.Context(), address)
	if err != nil {
		h.respondError(w, err)
		return
	}
	h.respond(w, http.StatusOK, map[string]interface{}{"balances": balances})
}
