// internal/repository/transaction_repo.go
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
)

// TransactionFilter narrows ListByUser results. Nil fields are ignored.
type TransactionFilter struct {
	Type       *domain.TransactionType
	Status     *domain.TransactionStatus
	CurrencyID *uuid.UUID
	Limit      int
	Offset     int
}

// StatusUpdate carries the fields written alongside a status transition.
// From is the status the caller observed; the write is compare-and-set
// against it, so a transition raced by a concurrent writer fails instead of
// clobbering the committed state.
type StatusUpdate struct {
	From           domain.TransactionStatus
	Status         domain.TransactionStatus
	SettlementHash *string
	Reason         *string // Recorded into the metadata snapshot for auditability
	ProcessingDate *time.Time
	CompletionDate *time.Time
}

// TransactionRepository defines the interface for ledger entry data operations.
type TransactionRepository interface {
	// Create inserts a new ledger entry.
	Create(ctx context.Context, q DBExecutor, tx *domain.Transaction) error
	// GetByID retrieves a ledger entry by its internal id.
	GetByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Transaction, error)
	// GetByReference retrieves a ledger entry by its unique reference.
	GetByReference(ctx context.Context, q DBExecutor, reference string) (*domain.Transaction, error)
	// ListByUser retrieves a user's ledger entries, newest first.
	ListByUser(ctx context.Context, q DBExecutor, userID uuid.UUID, filter TransactionFilter) ([]domain.Transaction, error)
	// UpdateStatus applies a status transition together with its side fields.
	UpdateStatus(ctx context.Context, q DBExecutor, id uuid.UUID, update StatusUpdate) error
	// UpdateDescription patches the mutable, non-monetary fields of an entry.
	UpdateDescription(ctx context.Context, q DBExecutor, id uuid.UUID, description *string) error
	// Delete removes a ledger entry.
	Delete(ctx context.Context, q DBExecutor, id uuid.UUID) error
}
