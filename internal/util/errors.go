// internal/util/errors.go
package util

import "errors"

// Common application-specific errors.
var (
	ErrNotFound           = errors.New("resource not found")
	ErrInvalidInput       = errors.New("invalid input provided")
	ErrAccessDenied       = errors.New("access denied")
	ErrCurrencyNotFound   = errors.New("currency not found")
	ErrDuplicateReference = errors.New("transaction reference already exists")

	// Status lifecycle.
	ErrInvalidStatusTransition = errors.New("invalid status transition")

	// Settlement-side errors.
	ErrInvalidDestination       = errors.New("invalid destination address")
	ErrInvalidAsset             = errors.New("invalid asset format")
	ErrBuildFailed              = errors.New("failed to build settlement payload")
	ErrAccountNotFound          = errors.New("ledger account not found")
	ErrSettlementRejected       = errors.New("settlement rejected by network")
	ErrSettlementUnavailable    = errors.New("settlement network unavailable") // Retryable by the caller
	ErrSettlementDesynchronized = errors.New("settlement sequence desynchronized")
)

// IsError reports whether err wraps target. Thin wrapper kept so handlers
// read uniformly.
func IsError(err, target error) bool {
	return errors.Is(err, target)
}
