// internal/api/handler/transaction.go
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Uyoxy/NexaFx-backend/internal/api/types"
	"github.com/Uyoxy/NexaFx-backend/internal/domain"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/service"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// DefaultTimeout bounds request handling at the router level.
const DefaultTimeout = 60 * time.Second

// userIDHeader carries the authenticated user's id, injected by the upstream
// auth layer (out of scope here).
const userIDHeader = "X-User-ID"

// TransactionHandler handles HTTP requests for the transaction ledger.
type TransactionHandler struct {
	service service.TransactionService
	logger  *slog.Logger
}

// NewTransactionHandler creates a new TransactionHandler.
func NewTransactionHandler(svc service.TransactionService, logger *slog.Logger) *TransactionHandler {
	return &TransactionHandler{
		service: svc,
		logger:  logger,
	}
}

func (h *TransactionHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
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

func (h *TransactionHandler) respondWithError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	message := "Internal server error"

	switch {
	case util.IsError(err, util.ErrInvalidInput),
		util.IsError(err, util.ErrInvalidStatusTransition),
		util.IsError(err, util.ErrInvalidDestination),
		util.IsError(err, util.ErrInvalidAsset),
		util.IsError(err, util.ErrBuildFailed):
		statusCode = http.StatusBadRequest
		message = err.Error()
	case util.IsError(err, util.ErrAccessDenied):
		statusCode = http.StatusForbidden
		message = "You do not have permission to access this transaction"
	case util.IsError(err, util.ErrNotFound), util.IsError(err, util.ErrCurrencyNotFound), util.IsError(err, util.ErrAccountNotFound):
		statusCode = http.StatusNotFound
		message = "Resource not found"
	case util.IsError(err, util.ErrDuplicateReference):
		statusCode = http.StatusConflict
		message = err.Error()
	case util.IsError(err, util.ErrSettlementRejected):
		statusCode = http.StatusUnprocessableEntity
		message = err.Error()
	case util.IsError(err, util.ErrSettlementUnavailable), util.IsError(err, util.ErrSettlementDesynchronized):
		statusCode = http.StatusServiceUnavailable
		message = "Settlement temporarily unavailable, retry later"
	default:
		h.logger.Error("Unhandled service error", "error", err)
	}

	h.respondWithJSON(w, statusCode, types.ErrorResponse{Error: message})
}

// requestUserID extracts the authenticated user id from the request.
func requestUserID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(r.Header.Get(userIDHeader))
	if err != nil {
		return uuid.Nil, util.ErrInvalidInput
	}
	return id, nil
}

// CreateTransactionRequest represents the request body for creating a transaction.
type CreateTransactionRequest struct {
	Type               domain.TransactionType `json:"type"`
	Amount             decimal.Decimal        `json:"amount"`
	CurrencyID         uuid.UUID              `json:"currency_id"`
	Reference          string                 `json:"reference,omitempty"`
	Description        *string                `json:"description,omitempty"`
	SourceAccount      *string                `json:"source_account,omitempty"`
	DestinationAccount *string                `json:"destination_account,omitempty"`
}

// Create handles POST /transactions.
func (h *TransactionHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req CreateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) || !domain.ValidTransactionType(req.Type) || req.CurrencyID == uuid.Nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	transaction, err := h.service.CreateTransaction(r.Context(), service.CreateTransactionInput{
		UserID:             userID,
		Type:               req.Type,
		BaseAmount:         req.Amount,
		CurrencyID:         req.CurrencyID,
		Reference:          req.Reference,
		Description:        req.Description,
		SourceAccount:      req.SourceAccount,
		DestinationAccount: req.DestinationAccount,
	})
	if err != nil {
		// A settlement failure still created the ledger entry; report the
		// entry together with the failure status rather than hiding it.
		if transaction != nil {
			h.respondWithJSON(w, http.StatusCreated, transaction)
			return
		}
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, transaction)
}

// Get handles GET /transactions/{transactionID}.
func (h *TransactionHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	transaction, err := h.service.GetTransaction(r.Context(), transactionID, userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// GetByReference handles GET /transactions/reference/{reference}.
func (h *TransactionHandler) GetByReference(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	reference := chi.URLParam(r, "reference")
	if reference == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	transaction, err := h.service.GetByReference(r.Context(), reference, userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// List handles GET /transactions with optional type/status/currency filters.
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	filter := repository.TransactionFilter{}
	if v := r.URL.Query().Get("type"); v != "" {
		t := domain.TransactionType(v)
		if !domain.ValidTransactionType(t) {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		filter.Type = &t
	}
	if v := r.URL.Query().Get("status"); v != "" {
		s := domain.TransactionStatus(v)
		if !domain.ValidTransactionStatus(s) {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		filter.Status = &s
	}
	if v := r.URL.Query().Get("currency_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			h.respondWithError(w, util.ErrInvalidInput)
			return
		}
		filter.CurrencyID = &id
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}

	transactions, err := h.service.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.ListResponse[domain.Transaction]{
		Data:   transactions,
		Count:  len(transactions),
		Limit:  filter.Limit,
		Offset: filter.Offset,
	})
}

// UpdateTransactionRequest represents the request body for patching a transaction.
type UpdateTransactionRequest struct {
	Description *string                   `json:"description,omitempty"`
	Status      *domain.TransactionStatus `json:"status,omitempty"`
	Reason      *string                   `json:"reason,omitempty"`
}

// Update handles PATCH /transactions/{transactionID}.
func (h *TransactionHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	var req UpdateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	transaction, err := h.service.UpdateTransaction(r.Context(), transactionID, userID, service.UpdateTransactionInput{
		Description: req.Description,
		Status:      req.Status,
		Reason:      req.Reason,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, transaction)
}

// Delete handles DELETE /transactions/{transactionID}.
func (h *TransactionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	transactionID, err := uuid.Parse(chi.URLParam(r, "transactionID"))
	if err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	if err := h.service.DeleteTransaction(r.Context(), transactionID, userID); err != nil {
		h.respondWithError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SwapRequest represents the request body for a currency swap. Currencies
// are addressed by code, matching how rates are quoted.
type SwapRequest struct {
	FromCurrency string          `json:"from_currency"`
	ToCurrency   string          `json:"to_currency"`
	Amount       decimal.Decimal `json:"amount"`
}

// Swap handles POST /transactions/swap.
func (h *TransactionHandler) Swap(w http.ResponseWriter, r *http.Request) {
	userID, err := requestUserID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req SwapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) || req.FromCurrency == "" || req.ToCurrency == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}

	transaction, err := h.service.Swap(r.Context(), service.SwapInput{
		UserID:       userID,
		FromCurrency: req.FromCurrency,
		ToCurrency:   req.ToCurrency,
		Amount:       req.Amount,
	})
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, transaction)
}
