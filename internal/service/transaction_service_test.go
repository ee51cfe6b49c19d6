// internal/service/transaction_service_test.go
package service

import (
	"context"
	"crypto/ed25519"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
	"github.com/Uyoxy/NexaFx-backend/internal/notifier"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/stellar"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// MockDBExecutor is a mock implementation of repository.DBExecutor.
type MockDBExecutor struct {
	mock.Mock
}

func (m *MockDBExecutor) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	argsCalled := m.Called(ctx, dest, query, args)
	return argsCalled.Error(0)
}

func (m *MockDBExecutor) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	argsCalled := m.Called(ctx, query, args)
	return argsCalled.Get(0).(sql.Result), argsCalled.Error(1)
}

func (m *MockDBExecutor) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	m.Called(ctx, query, args)
	return &sql.Row{}
}

// MockTransactionRepository is a mock implementation of repository.TransactionRepository.
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, q repository.DBExecutor, tx *domain.Transaction) error {
	args := m.Called(ctx, q, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Transaction, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	args := m.Called(ctx, q, userID, filter)
	return args.Get(0).([]domain.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateStatus(ctx context.Context, q repository.DBExecutor, id uuid.UUID, update repository.StatusUpdate) error {
	args := m.Called(ctx, q, id, update)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateDescription(ctx context.Context, q repository.DBExecutor, id uuid.UUID, description *string) error {
	args := m.Called(ctx, q, id, description)
	return args.Error(0)
}

func (m *MockTransactionRepository) Delete(ctx context.Context, q repository.DBExecutor, id uuid.UUID) error {
	args := m.Called(ctx, q, id)
	return args.Error(0)
}

// MockCurrencyRepository is a mock implementation of repository.CurrencyRepository.
type MockCurrencyRepository struct {
	mock.Mock
}

func (m *MockCurrencyRepository) GetByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Currency, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Currency), args.Error(1)
}

func (m *MockCurrencyRepository) GetByCode(ctx context.Context, q repository.DBExecutor, code string) (*domain.Currency, error) {
	args := m.Called(ctx, q, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Currency), args.Error(1)
}

// MockSettlementSubmitter is a mock implementation of SettlementSubmitter.
type MockSettlementSubmitter struct {
	mock.Mock
}

func (m *MockSettlementSubmitter) Submit(ctx context.Context, p stellar.Payment) (*stellar.SettlementResult, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*stellar.SettlementResult), args.Error(1)
}

// recordingNotifier captures emitted outcome events.
type recordingNotifier struct {
	settled []notifier.TransactionSettledEvent
	failed  []notifier.TransactionFailedEvent
	swapped []notifier.SwapCompletedEvent
}

func (n *recordingNotifier) TransactionSettled(e notifier.TransactionSettledEvent) {
	n.settled = append(n.settled, e)
}
func (n *recordingNotifier) TransactionFailed(e notifier.TransactionFailedEvent) {
	n.failed = append(n.failed, e)
}
func (n *recordingNotifier) SwapCompleted(e notifier.SwapCompletedEvent) { n.swapped = append(n.swapped, e) }
func (n *recordingNotifier) Close()                                     {}

type serviceFixture struct {
	txRepo       *MockTransactionRepository
	currencyRepo *MockCurrencyRepository
	executor     *MockDBExecutor
	settlements  *MockSettlementSubmitter
	events       *recordingNotifier
	svc          TransactionService
}

func newServiceFixture() *serviceFixture {
	txRepo := new(MockTransactionRepository)
	currencyRepo := new(MockCurrencyRepository)
	executor := new(MockDBExecutor)
	settlements := new(MockSettlementSubmitter)
	events := &recordingNotifier{}

	svc := NewTransactionService(
		nil, // dbBeginner unused outside Swap
		executor,
		txRepo,
		currencyRepo,
		NewFeeBuilder(currencyRepo, executor),
		NewReferenceRegistry(txRepo, executor),
		settlements,
		events,
		util.GetLogger(),
		nil, nil, nil,
	)
	return &serviceFixture{
		txRepo:       txRepo,
		currencyRepo: currencyRepo,
		executor:     executor,
		settlements:  settlements,
		events:       events,
		svc:          svc,
	}
}

func activeCurrency(id uuid.UUID, feePercentage string) *domain.Currency {
	return &domain.Currency{
		ID:            id,
		Code:          "USD",
		Name:          "US Dollar",
		Symbol:        "$",
		DecimalPlaces: 2,
		FeePercentage: decimal.RequireFromString(feePercentage),
		IsActive:      true,
	}
}

// testLedgerAddress builds a valid strkey account id for tests.
func testLedgerAddress(fill byte) string {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = fill
	}
	key := ed25519.NewKeyFromSeed(seed)
	return stellar.EncodeAccountID(key.Public().(ed25519.PublicKey))
}

func TestCreateTransactionComputesAmountsOnce(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	currencyID := uuid.New()

	f.currencyRepo.On("GetByID", mock.Anything, mock.Anything, currencyID).
		Return(activeCurrency(currencyID, "0.02"), nil)
	f.txRepo.On("GetByReference", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(nil, util.ErrNotFound)
	f.txRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Return(nil)

	tx, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		UserID:     userID,
		Type:       domain.TransactionTypeDeposit,
		BaseAmount: decimal.NewFromInt(1000),
		CurrencyID: currencyID,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusPending, tx.Status)
	assert.True(t, tx.FeeAmount.Equal(decimal.RequireFromString("20")), "fee was %s", tx.FeeAmount)
	assert.True(t, tx.TotalAmount.Equal(decimal.RequireFromString("1020")), "total was %s", tx.TotalAmount)
	assert.True(t, tx.Metadata.FeePercentage.Equal(decimal.RequireFromString("0.02")))
	f.settlements.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

func TestCreateTransactionDuplicateReferenceCreatesNoRow(t *testing.T) {
	f := newServiceFixture()
	currencyID := uuid.New()
	existing := &domain.Transaction{ID: uuid.New(), Reference: "TXN-1-TAKEN"}

	f.currencyRepo.On("GetByID", mock.Anything, mock.Anything, currencyID).
		Return(activeCurrency(currencyID, "0.02"), nil)
	f.txRepo.On("GetByReference", mock.Anything, mock.Anything, "TXN-1-TAKEN").
		Return(existing, nil)

	_, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		UserID:     uuid.New(),
		Type:       domain.TransactionTypeDeposit,
		BaseAmount: decimal.NewFromInt(50),
		CurrencyID: currencyID,
		Reference:  "TXN-1-TAKEN",
	})

	assert.ErrorIs(t, err, util.ErrDuplicateReference)
	f.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTransactionUnknownCurrency(t *testing.T) {
	f := newServiceFixture()
	currencyID := uuid.New()

	f.currencyRepo.On("GetByID", mock.Anything, mock.Anything, currencyID).
		Return(nil, util.ErrCurrencyNotFound)

	_, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		UserID:     uuid.New(),
		Type:       domain.TransactionTypeDeposit,
		BaseAmount: decimal.NewFromInt(50),
		CurrencyID: currencyID,
	})

	assert.ErrorIs(t, err, util.ErrCurrencyNotFound)
	f.txRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateTransactionSettlesWithdrawal(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	currencyID := uuid.New()
	destination := testLedgerAddress(7)

	f.currencyRepo.On("GetByID", mock.Anything, mock.Anything, currencyID).
		Return(activeCurrency(currencyID, "0.02"), nil)
	f.txRepo.On("GetByReference", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(nil, util.ErrNotFound)
	f.txRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Return(nil)
	f.txRepo.On("UpdateStatus", mock.Anything, mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("repository.StatusUpdate")).
		Return(nil)
	f.settlements.On("Submit", mock.Anything, mock.MatchedBy(func(p stellar.Payment) bool {
		return p.Destination == destination && p.Amount.Equal(decimal.NewFromInt(100)) && p.Asset == "USD"
	})).Return(&stellar.SettlementResult{
		Successful:      true,
		Outcome:         stellar.OutcomeSuccess,
		TransactionHash: "deadbeef",
		Ledger:          42,
	}, nil)

	tx, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		UserID:             userID,
		Type:               domain.TransactionTypeWithdrawal,
		BaseAmount:         decimal.NewFromInt(100),
		CurrencyID:         currencyID,
		DestinationAccount: &destination,
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, tx.Status)
	require.NotNil(t, tx.SettlementHash)
	assert.Equal(t, "deadbeef", *tx.SettlementHash)
	assert.NotNil(t, tx.CompletionDate)
	require.Len(t, f.events.settled, 1)
	assert.Equal(t, tx.ID, f.events.settled[0].TransactionID)
	assert.Empty(t, f.events.failed)
}

func TestCreateTransactionRecordsSettlementRejection(t *testing.T) {
	f := newServiceFixture()
	currencyID := uuid.New()
	destination := testLedgerAddress(9)

	f.currencyRepo.On("GetByID", mock.Anything, mock.Anything, currencyID).
		Return(activeCurrency(currencyID, "0"), nil)
	f.txRepo.On("GetByReference", mock.Anything, mock.Anything, mock.AnythingOfType("string")).
		Return(nil, util.ErrNotFound)
	f.txRepo.On("Create", mock.Anything, mock.Anything, mock.AnythingOfType("*domain.Transaction")).
		Return(nil)
	f.txRepo.On("UpdateStatus", mock.Anything, mock.Anything, mock.AnythingOfType("uuid.UUID"), mock.AnythingOfType("repository.StatusUpdate")).
		Return(nil)
	f.settlements.On("Submit", mock.Anything, mock.Anything).
		Return(&stellar.SettlementResult{
			Outcome:    stellar.OutcomeRejected,
			ResultCode: "op_underfunded",
		}, util.ErrSettlementRejected)

	tx, err := f.svc.CreateTransaction(context.Background(), CreateTransactionInput{
		UserID:             uuid.New(),
		Type:               domain.TransactionTypeTransfer,
		BaseAmount:         decimal.NewFromInt(100),
		CurrencyID:         currencyID,
		DestinationAccount: &destination,
	})

	assert.ErrorIs(t, err, util.ErrSettlementRejected)
	require.NotNil(t, tx)
	assert.Equal(t, domain.TransactionStatusFailed, tx.Status)
	assert.Equal(t, "op_underfunded", tx.Metadata.Reason)
	require.Len(t, f.events.failed, 1)
	assert.Equal(t, "op_underfunded", f.events.failed[0].Reason)
	assert.Empty(t, f.events.settled)
}

func TestGetTransactionAccessDenied(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()
	stranger := uuid.New()
	txID := uuid.New()

	f.txRepo.On("GetByID", mock.Anything, mock.Anything, txID).
		Return(&domain.Transaction{ID: txID, UserID: owner}, nil)

	_, err := f.svc.GetTransaction(context.Background(), txID, stranger)
	assert.ErrorIs(t, err, util.ErrAccessDenied)
}

func TestGetTransactionNotFound(t *testing.T) {
	f := newServiceFixture()
	txID := uuid.New()

	f.txRepo.On("GetByID", mock.Anything, mock.Anything, txID).
		Return(nil, util.ErrNotFound)

	_, err := f.svc.GetTransaction(context.Background(), txID, uuid.New())
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestGetByReferenceEnforcesOwnership(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()

	f.txRepo.On("GetByReference", mock.Anything, mock.Anything, "TXN-1-MINE").
		Return(&domain.Transaction{ID: uuid.New(), UserID: owner, Reference: "TXN-1-MINE"}, nil)

	tx, err := f.svc.GetByReference(context.Background(), "TXN-1-MINE", owner)
	require.NoError(t, err)
	assert.Equal(t, "TXN-1-MINE", tx.Reference)

	_, err = f.svc.GetByReference(context.Background(), "TXN-1-MINE", uuid.New())
	assert.ErrorIs(t, err, util.ErrAccessDenied)
}

func TestUpdateTransactionRejectsTerminalTransition(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	txID := uuid.New()
	completed := time.Now().UTC()

	f.txRepo.On("GetByID", mock.Anything, mock.Anything, txID).
		Return(&domain.Transaction{
			ID:             txID,
			UserID:         userID,
			Status:         domain.TransactionStatusCompleted,
			CompletionDate: &completed,
		}, nil)

	failed := domain.TransactionStatusFailed
	_, err := f.svc.UpdateTransaction(context.Background(), txID, userID, UpdateTransactionInput{Status: &failed})

	assert.ErrorIs(t, err, util.ErrInvalidStatusTransition)
	f.txRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateTransactionLosesRaceToCompletedWriter(t *testing.T) {
	f := newServiceFixture()
	userID := uuid.New()
	txID := uuid.New()

	// Snapshot read while the row is still PROCESSING; a competing writer
	// completes it before this request's write lands.
	f.txRepo.On("GetByID", mock.Anything, mock.Anything, txID).
		Return(&domain.Transaction{
			ID:     txID,
			UserID: userID,
			Status: domain.TransactionStatusProcessing,
		}, nil)
	f.txRepo.On("UpdateStatus", mock.Anything, mock.Anything, txID,
		mock.MatchedBy(func(u repository.StatusUpdate) bool {
			return u.From == domain.TransactionStatusProcessing && u.Status == domain.TransactionStatusFailed
		})).
		Return(util.ErrInvalidStatusTransition)

	failed := domain.TransactionStatusFailed
	reason := "operator cancel"
	_, err := f.svc.UpdateTransaction(context.Background(), txID, userID, UpdateTransactionInput{
		Status: &failed,
		Reason: &reason,
	})

	assert.ErrorIs(t, err, util.ErrInvalidStatusTransition)
	f.txRepo.AssertExpectations(t)
	assert.Empty(t, f.events.failed)
}

func TestDeleteTransactionEnforcesOwnership(t *testing.T) {
	f := newServiceFixture()
	owner := uuid.New()
	txID := uuid.New()

	f.txRepo.On("GetByID", mock.Anything, mock.Anything, txID).
		Return(&domain.Transaction{ID: txID, UserID: owner}, nil)

	err := f.svc.DeleteTransaction(context.Background(), txID, uuid.New())
	assert.ErrorIs(t, err, util.ErrAccessDenied)
	f.txRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}
