// internal/domain/transaction.go
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal" // For precise monetary calculations
)

// TransactionType defines the type of a financial transaction.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
	TransactionTypeSwap       TransactionType = "SWAP"
)

// ValidTransactionType reports whether t is one of the known transaction types.
func ValidTransactionType(t TransactionType) bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal, TransactionTypeTransfer, TransactionTypeSwap:
		return true
	}
	return false
}

// TransactionStatus defines the status of a financial transaction.
type TransactionStatus string

const (
	TransactionStatusPending    TransactionStatus = "PENDING"
	TransactionStatusProcessing TransactionStatus = "PROCESSING"
	TransactionStatusCompleted  TransactionStatus = "COMPLETED"
	TransactionStatusFailed     TransactionStatus = "FAILED"
)

// ValidTransactionStatus reports whether s is one of the known statuses.
func ValidTransactionStatus(s TransactionStatus) bool {
	switch s {
	case TransactionStatusPending, TransactionStatusProcessing, TransactionStatusCompleted, TransactionStatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed
}

// CanTransition reports whether a transaction may move from s to next.
// Transitions are monotonic: PENDING -> PROCESSING -> {COMPLETED, FAILED},
// with PENDING -> FAILED allowed for pre-settlement validation failures.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	switch s {
	case TransactionStatusPending:
		return next == TransactionStatusProcessing || next == TransactionStatusFailed
	case TransactionStatusProcessing:
		return next == TransactionStatusCompleted || next == TransactionStatusFailed
	}
	return false
}

// Metadata is the immutable audit snapshot recorded at creation time.
// FeePercentage is the exact rate used, so the fee computation stays
// independently auditable even if the currency's rate changes later.
type Metadata struct {
	BaseAmount    decimal.Decimal `json:"baseAmount"`
	FeePercentage decimal.Decimal `json:"feePercentage"`
	FeeAmount     decimal.Decimal `json:"feeAmount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Reason        string          `json:"reason,omitempty"`
}

// Value implements driver.Valuer so the snapshot persists as JSONB.
func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

// Scan implements sql.Scanner for reading the JSONB column back.
func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("unsupported metadata column type %T", src)
	}
}

// Transaction represents one ledger entry.
type Transaction struct {
	ID                 uuid.UUID         `db:"id" json:"id"`
	UserID             uuid.UUID         `db:"user_id" json:"user_id"`
	Reference          string            `db:"reference" json:"reference"` // Unique, caller-supplied or generated
	Type               TransactionType   `db:"type" json:"type"`
	BaseAmount         decimal.Decimal   `db:"base_amount" json:"base_amount"`   // NUMERIC(12, 2) in DB
	FeeAmount          decimal.Decimal   `db:"fee_amount" json:"fee_amount"`     // NUMERIC(12, 2) in DB
	TotalAmount        decimal.Decimal   `db:"total_amount" json:"total_amount"` // base + fee, computed once at creation
	CurrencyID         uuid.UUID         `db:"currency_id" json:"currency_id"`
	Status             TransactionStatus `db:"status" json:"status"`
	SourceAccount      *string           `db:"source_account" json:"source_account"`
	DestinationAccount *string           `db:"destination_account" json:"destination_account"`
	SettlementHash     *string           `db:"settlement_hash" json:"settlement_hash"` // External ledger transaction id, set once on settlement
	Description        *string           `db:"description" json:"description"`
	Metadata           Metadata          `db:"metadata" json:"metadata"`
	ProcessingDate     *time.Time        `db:"processing_date" json:"processing_date"`
	CompletionDate     *time.Time        `db:"completion_date" json:"completion_date"` // Set iff status is terminal
	CreatedAt          time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time         `db:"updated_at" json:"updated_at"`
}

// TransactionDraft is a ledger entry with its amounts derived but no identity
// yet. The fee builder produces drafts; the transaction service assigns the
// reference and persists them.
type TransactionDraft struct {
	UserID             uuid.UUID
	Type               TransactionType
	BaseAmount         decimal.Decimal
	FeeAmount          decimal.Decimal
	TotalAmount        decimal.Decimal
	CurrencyID         uuid.UUID
	SourceAccount      *string
	DestinationAccount *string
	Description        *string
	Metadata           Metadata
}

// NewTransaction materializes a draft into a PENDING ledger entry.
func NewTransaction(draft *TransactionDraft, reference string) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		ID:                 uuid.New(),
		UserID:             draft.UserID,
		Reference:          reference,
		Type:               draft.Type,
		BaseAmount:         draft.BaseAmount,
		FeeAmount:          draft.FeeAmount,
		TotalAmount:        draft.TotalAmount,
		CurrencyID:         draft.CurrencyID,
		Status:             TransactionStatusPending,
		SourceAccount:      draft.SourceAccount,
		DestinationAccount: draft.DestinationAccount,
		Description:        draft.Description,
		Metadata:           draft.Metadata,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}
