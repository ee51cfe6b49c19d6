// internal/repository/postgres/currency_pg_test.go
package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

func currencyRow(id uuid.UUID) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "code", "name", "symbol", "decimal_places", "fee_percentage",
		"exchange_rate", "is_active", "created_at", "updated_at",
	}).AddRow(id.String(), "USD", "US Dollar", "$", 2, "0.0200", "1.0000", true, now, now)
}

func TestGetCurrencyByCode(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCurrencyRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM currencies WHERE code = \$1`).
		WithArgs("USD").
		WillReturnRows(currencyRow(id))

	currency, err := repo.GetByCode(context.Background(), db, "USD")

	require.NoError(t, err)
	assert.Equal(t, id, currency.ID)
	assert.True(t, currency.FeePercentage.Equal(decimal.RequireFromString("0.02")))
	require.NotNil(t, currency.ExchangeRate)
	assert.True(t, currency.ExchangeRate.Equal(decimal.NewFromInt(1)))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrencyByIDNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCurrencyRepository(db)
	id := uuid.New()

	mock.ExpectQuery(`SELECT .+ FROM currencies WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), db, id)
	assert.ErrorIs(t, err, util.ErrCurrencyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrencyByCodeNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewCurrencyRepository(db)

	mock.ExpectQuery(`SELECT .+ FROM currencies WHERE code = \$1`).
		WithArgs("XYZ").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByCode(context.Background(), db, "XYZ")
	assert.ErrorIs(t, err, util.ErrCurrencyNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
