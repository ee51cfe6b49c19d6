// internal/repository/postgres/currency_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

const currencyColumns = `id, code, name, symbol, decimal_places, fee_percentage, exchange_rate, is_active, created_at, updated_at`

// CurrencyRepository implements repository.CurrencyRepository for PostgreSQL.
type CurrencyRepository struct{}

// NewCurrencyRepository creates a new CurrencyRepository.
func NewCurrencyRepository(db *sqlx.DB) repository.CurrencyRepository {
	return &CurrencyRepository{}
}

// GetByID retrieves a currency by its id.
func (r *CurrencyRepository) GetByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Currency, error) {
	var currency domain.Currency
	query := `SELECT ` + currencyColumns + ` FROM currencies WHERE id = $1`
	if err := q.GetContext(ctx, &currency, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrCurrencyNotFound
		}
		return nil, fmt.Errorf("failed to fetch currency %s: %w", id, err)
	}
	return &currency, nil
}

// GetByCode retrieves a currency by its unique code.
func (r *CurrencyRepository) GetByCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.Currency, error) {
	var currency domain.Currency
	query := `SELECT ` + currencyColumns + ` FROM currencies WHERE code = $1`
	if err := q.GetContext(ctx, &currency, query, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrCurrencyNotFound
		}
		return nil, fmt.Errorf("failed to fetch currency with code %s: %w", code, err)
	}
	return &currency, nil
}
