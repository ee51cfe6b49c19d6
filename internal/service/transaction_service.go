// internal/service/transaction_service.go
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
	"github.com/Uyoxy/NexaFx-backend/internal/metrics"
	"github.com/Uyoxy/NexaFx-backend/internal/notifier"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/stellar"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
	"github.com/Uyoxy/NexaFx-backend/pkg/db"
)

// Memos on the external ledger are limited to 28 bytes of text.
const memoMaxLen = 28

// SettlementSubmitter is the coordinator's surface used here. Tests
// substitute a mock; production wires *stellar.Coordinator.
type SettlementSubmitter interface {
	Submit(ctx context.Context, p stellar.Payment) (*stellar.SettlementResult, error)
}

// CreateTransactionInput carries the inbound create request.
type CreateTransactionInput struct {
	UserID             uuid.UUID
	Type               domain.TransactionType
	BaseAmount         decimal.Decimal
	CurrencyID         uuid.UUID
	Reference          string // Optional; generated when empty
	Description        *string
	SourceAccount      *string
	DestinationAccount *string
}

// UpdateTransactionInput is the patch surface of an existing entry.
// Amounts are immutable once computed; only the description and the status
// lifecycle can change.
type UpdateTransactionInput struct {
	Description *string
	Status      *domain.TransactionStatus
	Reason      *string
}

// SwapInput describes a currency swap for one user. Currencies are addressed
// by code, the form callers quote rates in.
type SwapInput struct {
	UserID       uuid.UUID
	FromCurrency string
	ToCurrency   string
	Amount       decimal.Decimal
}

// TransactionService defines the transaction ledger's business logic.
type TransactionService interface {
	CreateTransaction(ctx context.Context, in CreateTransactionInput) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id, requestingUserID uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string, requestingUserID uuid.UUID) (*domain.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, filter repository.TransactionFilter) ([]domain.Transaction, error)
	UpdateTransaction(ctx context.Context, id, requestingUserID uuid.UUID, patch UpdateTransactionInput) (*domain.Transaction, error)
	DeleteTransaction(ctx context.Context, id, requestingUserID uuid.UUID) error
	Swap(ctx context.Context, in SwapInput) (*domain.Transaction, error)
}

type transactionService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	transactionRepo repository.TransactionRepository
	currencyRepo    repository.CurrencyRepository
	feeBuilder      *FeeBuilder
	references      *ReferenceRegistry
	settlements     SettlementSubmitter
	events          notifier.Notifier
	logger          *slog.Logger
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
}

// NewTransactionService creates a new instance of TransactionService.
func NewTransactionService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	transactionRepo repository.TransactionRepository,
	currencyRepo repository.CurrencyRepository,
	feeBuilder *FeeBuilder,
	references *ReferenceRegistry,
	settlements SettlementSubmitter,
	events notifier.Notifier,
	logger *slog.Logger,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) TransactionService {
	return &transactionService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		transactionRepo: transactionRepo,
		currencyRepo:    currencyRepo,
		feeBuilder:      feeBuilder,
		references:      references,
		settlements:     settlements,
		events:          events,
		logger:          logger,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
	}
}

// CreateTransaction derives amounts, assigns a unique reference, persists a
// PENDING entry, and settles it on the external ledger when the type calls
// for it. Ledger-entry creation for non-settled types proceeds without ever
// touching the settlement path.
func (s *transactionService) CreateTransaction(ctx context.Context, in CreateTransactionInput) (*domain.Transaction, error) {
	draft, err := s.feeBuilder.Build(ctx, BuildInput{
		UserID:             in.UserID,
		Type:               in.Type,
		BaseAmount:         in.BaseAmount,
		CurrencyID:         in.CurrencyID,
		Description:        in.Description,
		SourceAccount:      in.SourceAccount,
		DestinationAccount: in.DestinationAccount,
	})
	if err != nil {
		return nil, err
	}

	reference, err := s.references.EnsureUnique(ctx, in.Reference)
	if err != nil {
		return nil, err
	}

	transaction := domain.NewTransaction(draft, reference)
	if err := s.transactionRepo.Create(ctx, s.dbExecutor, transaction); err != nil {
		return nil, err
	}
	metrics.TransactionsCreated.WithLabelValues(string(transaction.Type)).Inc()
	s.logger.Info("Transaction created",
		"id", transaction.ID, "reference", transaction.Reference,
		"type", transaction.Type, "base_amount", transaction.BaseAmount,
		"fee_amount", transaction.FeeAmount, "total_amount", transaction.TotalAmount)

	if requiresSettlement(transaction) {
		if err := s.settle(ctx, transaction); err != nil {
			// The ledger entry already records the failure; surface the
			// settlement error with the persisted entry.
			return transaction, err
		}
	}
	return transaction, nil
}

// requiresSettlement reports whether the entry moves value on the external
// ledger: outgoing types addressed to a funded ledger account.
func requiresSettlement(tx *domain.Transaction) bool {
	if tx.Type != domain.TransactionTypeWithdrawal && tx.Type != domain.TransactionTypeTransfer {
		return false
	}
	return tx.DestinationAccount != nil && stellar.IsValidAccountID(*tx.DestinationAccount)
}

// settle hands the entry to the sequence coordinator and records the outcome.
// Every path ends in COMPLETED, FAILED with a reason, or a retryable error —
// and the latter still marks the entry FAILED so no failure is silent.
func (s *transactionService) settle(ctx context.Context, tx *domain.Transaction) error {
	now := time.Now().UTC()
	if err := s.transitionStatus(ctx, tx, repository.StatusUpdate{
		Status:         domain.TransactionStatusProcessing,
		ProcessingDate: &now,
	}); err != nil {
		return err
	}

	currency, err := s.currencyRepo.GetByID(ctx, s.dbExecutor, tx.CurrencyID)
	if err != nil {
		s.failTransaction(ctx, tx, "currency lookup failed: "+err.Error())
		return err
	}

	result, err := s.settlements.Submit(ctx, stellar.Payment{
		Destination: *tx.DestinationAccount,
		Amount:      tx.BaseAmount,
		Asset:       currency.Code,
		Memo:        truncateMemo(tx.Reference),
	})
	if err != nil {
		reason := err.Error()
		if result != nil && result.ResultCode != "" {
			reason = result.ResultCode
		}
		s.failTransaction(ctx, tx, reason)
		return fmt.Errorf("settle transaction %s: %w", tx.ID, err)
	}

	completed := time.Now().UTC()
	if err := s.transitionStatus(ctx, tx, repository.StatusUpdate{
		Status:         domain.TransactionStatusCompleted,
		SettlementHash: &result.TransactionHash,
		CompletionDate: &completed,
	}); err != nil {
		return err
	}
	s.events.TransactionSettled(notifier.TransactionSettledEvent{
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Hash:          result.TransactionHash,
		Timestamp:     completed,
	})
	s.logger.Info("Transaction settled", "id", tx.ID, "hash", result.TransactionHash, "ledger", result.Ledger)
	return nil
}

// failTransaction moves the entry to FAILED with the recorded reason and
// emits the failure event. Best effort: a persistence error here is logged,
// never raised over the original failure.
func (s *transactionService) failTransaction(ctx context.Context, tx *domain.Transaction, reason string) {
	now := time.Now().UTC()
	if err := s.transitionStatus(ctx, tx, repository.StatusUpdate{
		Status:         domain.TransactionStatusFailed,
		Reason:         &reason,
		CompletionDate: &now,
	}); err != nil {
		s.logger.Error("Failed to record transaction failure", "id", tx.ID, "reason", reason, "error", err)
		return
	}
	s.events.TransactionFailed(notifier.TransactionFailedEvent{
		UserID:        tx.UserID,
		TransactionID: tx.ID,
		Reason:        reason,
		Timestamp:     now,
	})
}

// transitionStatus enforces the status state machine and keeps the in-memory
// entry in step with the row. The pre-check here rejects transitions that
// are invalid against this request's snapshot; the repository's
// compare-and-set on From rejects the ones raced by a concurrent writer.
func (s *transactionService) transitionStatus(ctx context.Context, tx *domain.Transaction, update repository.StatusUpdate) error {
	if !tx.Status.CanTransition(update.Status) {
		return fmt.Errorf("cannot move transaction %s from %s to %s: %w",
			tx.ID, tx.Status, update.Status, util.ErrInvalidStatusTransition)
	}
	update.From = tx.Status
	if update.Status == domain.TransactionStatusCompleted && update.CompletionDate == nil {
		now := time.Now().UTC()
		update.CompletionDate = &now
	}
	if err := s.transactionRepo.UpdateStatus(ctx, s.dbExecutor, tx.ID, update); err != nil {
		return err
	}
	tx.Status = update.Status
	if update.SettlementHash != nil {
		tx.SettlementHash = update.SettlementHash
	}
	if update.Reason != nil {
		tx.Metadata.Reason = *update.Reason
	}
	if update.ProcessingDate != nil {
		tx.ProcessingDate = update.ProcessingDate
	}
	if update.CompletionDate != nil {
		tx.CompletionDate = update.CompletionDate
	}
	return nil
}

// GetTransaction retrieves an entry, enforcing ownership. A mismatched user
// gets ErrAccessDenied, not ErrNotFound: "not yours" and "doesn't exist" are
// distinct, auditable outcomes.
func (s *transactionService) GetTransaction(ctx context.Context, id, requestingUserID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.transactionRepo.GetByID(ctx, s.dbExecutor, id)
	if err != nil {
		return nil, err
	}
	if transaction.UserID != requestingUserID {
		return nil, fmt.Errorf("transaction %s: %w", id, util.ErrAccessDenied)
	}
	return transaction, nil
}

// GetByReference retrieves an owned entry by its unique reference, with the
// same ownership semantics as GetTransaction.
func (s *transactionService) GetByReference(ctx context.Context, reference string, requestingUserID uuid.UUID) (*domain.Transaction, error) {
	transaction, err := s.transactionRepo.GetByReference(ctx, s.dbExecutor, reference)
	if err != nil {
		return nil, err
	}
	if transaction.UserID != requestingUserID {
		return nil, fmt.Errorf("transaction %s: %w", reference, util.ErrAccessDenied)
	}
	return transaction, nil
}

// ListTransactions retrieves a user's entries, newest first.
func (s *transactionService) ListTransactions(ctx context.Context, userID uuid.UUID, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	return s.transactionRepo.ListByUser(ctx, s.dbExecutor, userID, filter)
}

// UpdateTransaction patches an owned entry. Status changes go through the
// state machine; setting COMPLETED without a completion timestamp auto-stamps
// the current time.
func (s *transactionService) UpdateTransaction(ctx context.Context, id, requestingUserID uuid.UUID, patch UpdateTransactionInput) (*domain.Transaction, error) {
	transaction, err := s.GetTransaction(ctx, id, requestingUserID)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil {
		update := repository.StatusUpdate{Status: *patch.Status, Reason: patch.Reason}
		if patch.Status.IsTerminal() {
			now := time.Now().UTC()
			update.CompletionDate = &now
		}
		if err := s.transitionStatus(ctx, transaction, update); err != nil {
			return nil, err
		}
	}
	if patch.Description != nil {
		if err := s.transactionRepo.UpdateDescription(ctx, s.dbExecutor, id, patch.Description); err != nil {
			return nil, err
		}
		transaction.Description = patch.Description
	}
	return transaction, nil
}

// DeleteTransaction removes an owned entry.
func (s *transactionService) DeleteTransaction(ctx context.Context, id, requestingUserID uuid.UUID) error {
	if _, err := s.GetTransaction(ctx, id, requestingUserID); err != nil {
		return err
	}
	return s.transactionRepo.Delete(ctx, s.dbExecutor, id)
}

// Swap converts between two supported currencies at their recorded exchange
// rates and books the result as a COMPLETED swap entry, atomically.
func (s *transactionService) Swap(ctx context.Context, in SwapInput) (*domain.Transaction, error) {
	fromCurrency, err := s.currencyRepo.GetByCode(ctx, s.dbExecutor, in.FromCurrency)
	if err != nil {
		return nil, err
	}
	toCurrency, err := s.currencyRepo.GetByCode(ctx, s.dbExecutor, in.ToCurrency)
	if err != nil {
		return nil, err
	}
	if fromCurrency.ExchangeRate == nil || toCurrency.ExchangeRate == nil ||
		fromCurrency.ExchangeRate.LessThanOrEqual(decimal.Zero) || toCurrency.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("no exchange rate for %s -> %s: %w", fromCurrency.Code, toCurrency.Code, util.ErrInvalidInput)
	}

	// Rates are quoted as units per USD.
	toAmount := in.Amount.Div(*fromCurrency.ExchangeRate).Mul(*toCurrency.ExchangeRate).Round(amountScale)

	draft, err := s.feeBuilder.Build(ctx, BuildInput{
		UserID:     in.UserID,
		Type:       domain.TransactionTypeSwap,
		BaseAmount: in.Amount,
		CurrencyID: fromCurrency.ID,
	})
	if err != nil {
		return nil, err
	}
	reference, err := s.references.EnsureUnique(ctx, "")
	if err != nil {
		return nil, err
	}
	transaction := domain.NewTransaction(draft, reference)

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, fmt.Errorf("swap: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, fmt.Errorf("swap: transaction controller does not implement DBExecutor")
	}

	if err := s.transactionRepo.Create(ctx, txExecutor, transaction); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	processing := now
	if err := s.transactionRepo.UpdateStatus(ctx, txExecutor, transaction.ID, repository.StatusUpdate{
		From:           domain.TransactionStatusPending,
		Status:         domain.TransactionStatusProcessing,
		ProcessingDate: &processing,
	}); err != nil {
		return nil, err
	}
	if err := s.transactionRepo.UpdateStatus(ctx, txExecutor, transaction.ID, repository.StatusUpdate{
		From:           domain.TransactionStatusProcessing,
		Status:         domain.TransactionStatusCompleted,
		CompletionDate: &now,
	}); err != nil {
		return nil, err
	}
	if err := s.commitTx(txController); err != nil {
		return nil, fmt.Errorf("swap: failed to commit transaction: %w", err)
	}

	transaction.Status = domain.TransactionStatusCompleted
	transaction.ProcessingDate = &processing
	transaction.CompletionDate = &now
	metrics.TransactionsCreated.WithLabelValues(string(domain.TransactionTypeSwap)).Inc()

	s.events.SwapCompleted(notifier.SwapCompletedEvent{
		UserID:        in.UserID,
		TransactionID: transaction.ID,
		FromCurrency:  fromCurrency.Code,
		ToCurrency:    toCurrency.Code,
		FromAmount:    in.Amount,
		ToAmount:      toAmount,
		Timestamp:     now,
	})
	s.logger.Info("Swap completed",
		"id", transaction.ID, "from", fromCurrency.Code, "to", toCurrency.Code,
		"from_amount", in.Amount, "to_amount", toAmount)
	return transaction, nil
}

func truncateMemo(memo string) string {
	if len(memo) > memoMaxLen {
		return memo[:memoMaxLen]
	}
	return memo
}
