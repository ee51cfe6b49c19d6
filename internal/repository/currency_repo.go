// internal/repository/currency_repo.go
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
)

// CurrencyRepository defines the interface for currency data operations.
// Fee rates are read fresh at transaction-creation time; nothing here caches.
type CurrencyRepository interface {
	// GetByID retrieves a currency by its id.
	GetByID(ctx context.Context, q DBExecutor, id uuid.UUID) (*domain.Currency, error)
	// GetByCode retrieves a currency by its unique code.
	GetByCode(ctx context.Context, q DBExecutor, code string) (*domain.Currency, error)
}
