// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Uyoxy/NexaFx-backend/internal/domain"
	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

// pq error code for unique constraint violations.
const pqUniqueViolation = "23505"

const transactionColumns = `id, user_id, reference, type, base_amount, fee_amount, total_amount,
	currency_id, status, source_account, destination_account, settlement_hash,
	description, metadata, processing_date, completion_date, created_at, updated_at`

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository(db *sqlx.DB) repository.TransactionRepository {
	return &TransactionRepository{}
}

// Create inserts a new ledger entry. A unique violation on the reference
// column maps to util.ErrDuplicateReference so the registry's database-level
// backstop surfaces the same error as its pre-check.
func (r *TransactionRepository) Create(ctx context.Context, q repository.DBExecutor, tx *domain.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err := q.ExecContext(ctx, query,
		tx.ID,
		tx.UserID,
		tx.Reference,
		tx.Type,
		tx.BaseAmount,
		tx.FeeAmount,
		tx.TotalAmount,
		tx.CurrencyID,
		tx.Status,
		tx.SourceAccount,
		tx.DestinationAccount,
		tx.SettlementHash,
		tx.Description,
		tx.Metadata,
		tx.ProcessingDate,
		tx.CompletionDate,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return fmt.Errorf("create transaction %s: %w", tx.Reference, util.ErrDuplicateReference)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

// GetByID retrieves a ledger entry by its internal id.
func (r *TransactionRepository) GetByID(ctx context.Context, q repository.DBExecutor, id uuid.UUID) (*domain.Transaction, error) {
	var tx domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	if err := q.GetContext(ctx, &tx, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction %s: %w", id, err)
	}
	return &tx, nil
}

// GetByReference retrieves a ledger entry by its unique reference.
func (r *TransactionRepository) GetByReference(ctx context.Context, q repository.DBExecutor, reference string) (*domain.Transaction, error) {
	var tx domain.Transaction
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`
	if err := q.GetContext(ctx, &tx, query, reference); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch transaction by reference %s: %w", reference, err)
	}
	return &tx, nil
}

// ListByUser retrieves a user's ledger entries, newest first, with optional
// type/status/currency filters.
func (r *TransactionRepository) ListByUser(ctx context.Context, q repository.DBExecutor, userID uuid.UUID, filter repository.TransactionFilter) ([]domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Type != nil {
		args = append(args, *filter.Type)
		query += ` AND type = $` + strconv.Itoa(len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	if filter.CurrencyID != nil {
		args = append(args, *filter.CurrencyID)
		query += ` AND currency_id = $` + strconv.Itoa(len(args))
	}

	query += ` ORDER BY created_at DESC`

	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	transactions := []domain.Transaction{}
	if err := q.SelectContext(ctx, &transactions, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list transactions for user %s: %w", userID, err)
	}
	return transactions, nil
}

// UpdateStatus applies a status transition together with its side fields.
// The write is compare-and-set on update.From, so two writers racing on the
// same entry cannot both move it: the loser sees the row in a status it did
// not expect and gets ErrInvalidStatusTransition. The metadata reason is
// merged with jsonb concatenation so the creation-time fee snapshot stays
// intact.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, q repository.DBExecutor, id uuid.UUID, update repository.StatusUpdate) error {
	query := `UPDATE transactions
              SET status = $2,
                  settlement_hash = COALESCE($3, settlement_hash),
                  metadata = CASE WHEN $4::text IS NULL THEN metadata
                                  ELSE metadata || jsonb_build_object('reason', $4::text) END,
                  processing_date = COALESCE($5, processing_date),
                  completion_date = COALESCE($6, completion_date),
                  updated_at = NOW()
              WHERE id = $1 AND status = $7`

	res, err := q.ExecContext(ctx, query,
		id,
		update.Status,
		update.SettlementHash,
		update.Reason,
		update.ProcessingDate,
		update.CompletionDate,
		update.From,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s status: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for transaction %s: %w", id, err)
	}
	if rows == 0 {
		return r.explainMissedUpdate(ctx, q, id, update)
	}
	return nil
}

// explainMissedUpdate distinguishes a vanished row from a row whose status
// moved underneath the caller's snapshot.
func (r *TransactionRepository) explainMissedUpdate(ctx context.Context, q repository.DBExecutor, id uuid.UUID, update repository.StatusUpdate) error {
	var current domain.TransactionStatus
	err := q.GetContext(ctx, &current, `SELECT status FROM transactions WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return util.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to re-read transaction %s status: %w", id, err)
	}
	return fmt.Errorf("transaction %s moved from %s to %s concurrently, cannot apply %s: %w",
		id, update.From, current, update.Status, util.ErrInvalidStatusTransition)
}

// UpdateDescription patches the mutable, non-monetary fields of an entry.
func (r *TransactionRepository) UpdateDescription(ctx context.Context, q repository.DBExecutor, id uuid.UUID, description *string) error {
	query := `UPDATE transactions SET description = $2, updated_at = NOW() WHERE id = $1`
	res, err := q.ExecContext(ctx, query, id, description)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for transaction %s: %w", id, err)
	}
	if rows == 0 {
		return util.ErrNotFound
	}
	return nil
}

// Delete removes a ledger entry.
func (r *TransactionRepository) Delete(ctx context.Context, q repository.DBExecutor, id uuid.UUID) error {
	res, err := q.ExecContext(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction %s: %w", id, err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows for transaction %s: %w", id, err)
	}
	if rows == 0 {
		return util.ErrNotFound
	}
	return nil
}
