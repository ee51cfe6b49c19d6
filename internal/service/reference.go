// internal/service/reference.go
package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/Uyoxy/NexaFx-backend/internal/repository"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

const (
	referencePrefix       = "TXN"
	referenceSuffixLen    = 6
	referenceSuffixChars  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	referenceMaxGenerates = 5
)

// ReferenceRegistry guarantees global uniqueness of transaction references.
// The database UNIQUE constraint on the reference column is the backstop for
// the race between the pre-check here and the insert.
type ReferenceRegistry struct {
	transactionRepo repository.TransactionRepository
	dbExecutor      repository.DBExecutor
}

// NewReferenceRegistry creates a new ReferenceRegistry.
func NewReferenceRegistry(transactionRepo repository.TransactionRepository, dbExecutor repository.DBExecutor) *ReferenceRegistry {
	return &ReferenceRegistry{
		transactionRepo: transactionRepo,
		dbExecutor:      dbExecutor,
	}
}

// EnsureUnique validates a caller-supplied reference or generates one.
// A supplied candidate that already exists fails with ErrDuplicateReference.
// Generated references are re-checked before being returned; on the rare
// collision a fresh suffix is drawn rather than failing.
func (r *ReferenceRegistry) EnsureUnique(ctx context.Context, candidate string) (string, error) {
	if candidate != "" {
		taken, err := r.exists(ctx, candidate)
		if err != nil {
			return "", err
		}
		if taken {
			return "", fmt.Errorf("reference %s: %w", candidate, util.ErrDuplicateReference)
		}
		return candidate, nil
	}

	for attempt := 0; attempt < referenceMaxGenerates; attempt++ {
		reference, err := generateReference()
		if err != nil {
			return "", err
		}
		taken, err := r.exists(ctx, reference)
		if err != nil {
			return "", err
		}
		if !taken {
			return reference, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique reference after %d attempts", referenceMaxGenerates)
}

func (r *ReferenceRegistry) exists(ctx context.Context, reference string) (bool, error) {
	_, err := r.transactionRepo.GetByReference(ctx, r.dbExecutor, reference)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, util.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("failed to check reference %s: %w", reference, err)
}

// generateReference produces TXN-<unix-millis>-<random suffix>.
func generateReference() (string, error) {
	suffix := make([]byte, referenceSuffixLen)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("failed to draw reference suffix: %w", err)
	}
	for i, b := range suffix {
		suffix[i] = referenceSuffixChars[int(b)%len(referenceSuffixChars)]
	}
	return fmt.Sprintf("%s-%d-%s", referencePrefix, time.Now().UnixMilli(), suffix), nil
}
