// internal/domain/currency.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency represents a supported asset and its fee schedule.
type Currency struct {
	ID            uuid.UUID        `db:"id" json:"id"`
	Code          string           `db:"code" json:"code"` // Unique, e.g. "USD", "XLM"
	Name          string           `db:"name" json:"name"`
	Symbol        string           `db:"symbol" json:"symbol"`
	DecimalPlaces int              `db:"decimal_places" json:"decimal_places"`
	FeePercentage decimal.Decimal  `db:"fee_percentage" json:"fee_percentage"` // e.g. 0.0200 for 2%, NUMERIC(8, 4) in DB
	ExchangeRate  *decimal.Decimal `db:"exchange_rate" json:"exchange_rate"`   // Units per USD, nullable until first rate fetch
	IsActive      bool             `db:"is_active" json:"is_active"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// EffectiveFeePercentage returns the fee rate, defaulting to zero when the
// currency has no explicit schedule.
func (c *Currency) EffectiveFeePercentage() decimal.Decimal {
	if c.FeePercentage.IsNegative() {
		return decimal.Zero
	}
	return c.FeePercentage
}
