// internal/service/fee.go
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// Amounts are accounted with two fractional digits, fiat-equivalent.
const amountScale = 2

// BuildInput carries the caller-supplied fields of a new ledger entry.
type BuildInput struct {
	UserID             uuid.UUID
	Type               domain.TransactionType
	BaseAmount         decimal.Decimal
	CurrencyID         uuid.UUID
	Description        *string
	SourceAccount      *string
	DestinationAccount *string
}

// FeeBuilder derives fee and total amounts for new ledger entries.
// Its only side effect is the currency lookup; amounts are computed once
// here and never recomputed afterwards.
type FeeBuilder struct {
	currencyRepo repository.CurrencyRepository
	dbExecutor   repository.DBExecutor
}

// NewFeeBuilder creates a new FeeBuilder.
func NewFeeBuilder(currencyRepo repository.CurrencyRepository, dbExecutor repository.DBExecutor) *FeeBuilder {
	return &FeeBuilder{
		currencyRepo: currencyRepo,
		dbExecutor:   dbExecutor,
	}
}

// Build resolves the currency's fee schedule and returns a draft with
// fee = round(base * feePercentage, 2, half-up) and total = round(base + fee, 2).
// The metadata snapshot records the exact rate used. The currency is read
// fresh on every call; a stale rate is never reused across retries.
func (b *FeeBuilder) Build(ctx context.Context, in BuildInput) (*domain.TransactionDraft, error) {
	if in.BaseAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("base amount must be positive: %w", util.ErrInvalidInput)
	}
	if !domain.ValidTransactionType(in.Type) {
		return nil, fmt.Errorf("unknown transaction type %q: %w", in.Type, util.ErrInvalidInput)
	}

	currency, err := b.currencyRepo.GetByID(ctx, b.dbExecutor, in.CurrencyID)
	if err != nil {
		return nil, fmt.Errorf("fee build: %w", err)
	}
	if !currency.IsActive {
		return nil, fmt.Errorf("currency %s is inactive: %w", currency.Code, util.ErrCurrencyNotFound)
	}

	feePercentage := currency.EffectiveFeePercentage()
	feeAmount := in.BaseAmount.Mul(feePercentage).Round(amountScale)
	totalAmount := in.BaseAmount.Add(feeAmount).Round(amountScale)

	return &domain.TransactionDraft{
		UserID:             in.UserID,
		Type:               in.Type,
		BaseAmount:         in.BaseAmount,
		FeeAmount:          feeAmount,
		TotalAmount:        totalAmount,
		CurrencyID:         in.CurrencyID,
		SourceAccount:      in.SourceAccount,
		DestinationAccount: in.DestinationAccount,
		Description:        in.Description,
		Metadata: domain.Metadata{
			BaseAmount:    in.BaseAmount,
			FeePercentage: feePercentage,
			FeeAmount:     feeAmount,
			TotalAmount:   totalAmount,
		},
	}, nil
}
