// internal/notifier/notifier.go
package notifier

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event subjects consumed by downstream notification and audit systems.
const (
	SubjectTransactionSettled = "transaction.settled"
	SubjectTransactionFailed  = "transaction.failed"
	SubjectSwapCompleted      = "swap.completed"
)

// TransactionSettledEvent announces a settlement applied to the ledger.
type TransactionSettledEvent struct {
	UserID        uuid.UUID `json:"userId"`
	TransactionID uuid.UUID `json:"transactionId"`
	Hash          string    `json:"hash"`
	Timestamp     time.Time `json:"timestamp"`
}

// TransactionFailedEvent announces a terminal failure with its recorded reason.
type TransactionFailedEvent struct {
	UserID        uuid.UUID `json:"userId"`
	TransactionID uuid.UUID `json:"transactionId"`
	Reason        string    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
}

// SwapCompletedEvent announces a completed currency swap.
type SwapCompletedEvent struct {
	UserID        uuid.UUID       `json:"userId"`
	TransactionID uuid.UUID       `json:"transactionId"`
	FromCurrency  string          `json:"fromCurrency"`
	ToCurrency    string          `json:"toCurrency"`
	FromAmount    decimal.Decimal `json:"fromAmount"`
	ToAmount      decimal.Decimal `json:"toAmount"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Notifier receives terminal transaction outcomes. Emission is
// fire-and-forget: the settlement core never depends on delivery.
type Notifier interface {
	TransactionSettled(event TransactionSettledEvent)
	TransactionFailed(event TransactionFailedEvent)
	SwapCompleted(event SwapCompletedEvent)
	Close()
}

// Noop discards all events. Used in tests and NATS-less deployments.
type Noop struct{}

func (Noop) TransactionSettled(TransactionSettledEvent) {}
func (Noop) TransactionFailed(TransactionFailedEvent)   {}
func (Noop) SwapCompleted(SwapCompletedEvent)           {}
func (Noop) Close()                                     {}
