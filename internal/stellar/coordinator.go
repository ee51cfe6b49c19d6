// internal/stellar/coordinator.go
package stellar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Uyoxy/NexaFx-backend/internal/metrics"
	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 200 * time.Millisecond
)

// Network is the slice of the settlement client the coordinator drives.
// *Client implements it; tests substitute a mock.
type Network interface {
	LoadAccount(ctx context.Context, address string) (*AccountDetails, error)
	BuildAndSign(params PaymentParams) (*SignedPayload, error)
	Submit(ctx context.Context, payload *SignedPayload) (*SettlementResult, error)
}

var _ Network = (*Client)(nil)

// Payment is one settlement request handed to the coordinator.
type Payment struct {
	Destination string
	Amount      decimal.Decimal
	Asset       string
	Memo        string
	Timeout     time.Duration
}

// Coordinator serializes all settlement submissions for one custodial source
// account. It is the sole owner of the cached sequence number: no other
// component reads or writes it. Submissions queue on a channel-based lock in
// arrival order; commit order may still reorder around retries.
type Coordinator struct {
	network Network
	source  string
	logger  *slog.Logger

	maxAttempts int
	backoffBase time.Duration

	// lock serializes submissions. sequence and stale are only touched
	// while the lock is held.
	lock     chan struct{}
	sequence int64
	stale    bool
}

// CoordinatorOption customizes retry behavior.
type CoordinatorOption func(*Coordinator)

// WithMaxAttempts bounds the retry loop.
func WithMaxAttempts(n int) CoordinatorOption {
	return func(c *Coordinator) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; subsequent delays double.
func WithBackoffBase(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		if d > 0 {
			c.backoffBase = d
		}
	}
}

// NewCoordinator creates a coordinator for the given source account. The
// sequence cache starts stale and is fetched on first use.
func NewCoordinator(network Network, source string, logger *slog.Logger, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		network:     network,
		source:      source,
		logger:      logger,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		lock:        make(chan struct{}, 1),
		stale:       true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit builds, signs and submits one payment, serialized against all other
// submissions for this source account.
//
// Sequence conflicts resynchronize against the ledger and retry with backoff;
// transient network failures retry the same candidate sequence; operation
// rejections are terminal and force a resynchronization before the lock is
// released, since a rejected transaction may or may not have consumed its
// sequence slot. A caller whose context expires while waiting for the lock
// or a backoff gives up its own wait only; a dispatched network call is
// always resolved so the cache state stays truthful.
func (c *Coordinator) Submit(ctx context.Context, p Payment) (*SettlementResult, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrSettlementUnavailable, err)
	}
	defer c.release()

	start := time.Now()
	defer func() { metrics.SettlementDuration.Observe(time.Since(start).Seconds()) }()

	// Network calls below run on a detached context: once dispatched they
	// must resolve regardless of the caller, and the client's own timeout
	// bounds them.
	netCtx := context.WithoutCancel(ctx)

	var lastOutcome Outcome
	var lastResult *SettlementResult
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			metrics.SettlementRetries.Inc()
			if err := c.sleep(ctx, c.backoffDelay(attempt-1)); err != nil {
				return nil, fmt.Errorf("%w: %v", util.ErrSettlementUnavailable, err)
			}
		}

		if c.stale {
			if err := c.refreshSequence(netCtx); err != nil {
				c.logger.Warn("Sequence refresh failed", "source", c.source, "error", err)
				lastOutcome = OutcomeTransient
				continue
			}
		}
		candidate := c.sequence + 1

		payload, err := c.network.BuildAndSign(PaymentParams{
			Destination: p.Destination,
			Amount:      p.Amount,
			Asset:       p.Asset,
			Memo:        p.Memo,
			Timeout:     p.Timeout,
			Sequence:    candidate,
		})
		if err != nil {
			// Validation failure: rejected before any network call,
			// never retried.
			metrics.SettlementsTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}

		result, err := c.network.Submit(netCtx, payload)
		if err != nil {
			metrics.SettlementsTotal.WithLabelValues("invalid").Inc()
			return nil, err
		}
		lastOutcome, lastResult = result.Outcome, result

		switch result.Outcome {
		case OutcomeSuccess:
			c.sequence = candidate
			c.stale = false
			metrics.SettlementsTotal.WithLabelValues("success").Inc()
			return result, nil

		case OutcomeSequenceConflict:
			c.logger.Warn("Sequence conflict, resynchronizing",
				"source", c.source, "candidate", candidate, "attempt", attempt)
			c.stale = true

		case OutcomeRejected:
			// The slot may or may not be consumed; never advance
			// optimistically. Re-fetch the authoritative sequence
			// before releasing so the next submission starts clean.
			c.stale = true
			if err := c.refreshSequence(netCtx); err != nil {
				c.logger.Warn("Post-rejection sequence refresh failed", "source", c.source, "error", err)
			}
			metrics.SettlementsTotal.WithLabelValues("rejected").Inc()
			return result, fmt.Errorf("%s: %w", rejectionDetail(result), util.ErrSettlementRejected)

		case OutcomeTransient:
			// Retry the same candidate: the cache was not advanced, so
			// the next iteration recomputes the identical sequence.
			c.logger.Warn("Transient settlement failure",
				"source", c.source, "attempt", attempt, "error", result.ErrorMessage)
		}
	}

	// Retries exhausted without a truthful ledger answer; the next
	// submission must start from a fresh sequence fetch.
	c.stale = true
	if lastOutcome == OutcomeSequenceConflict {
		metrics.SettlementsTotal.WithLabelValues("desynchronized").Inc()
		return lastResult, fmt.Errorf("source %s after %d attempts: %w",
			c.source, c.maxAttempts, util.ErrSettlementDesynchronized)
	}
	metrics.SettlementsTotal.WithLabelValues("unavailable").Inc()
	return lastResult, fmt.Errorf("source %s after %d attempts: %w",
		c.source, c.maxAttempts, util.ErrSettlementUnavailable)
}

func (c *Coordinator) refreshSequence(ctx context.Context) error {
	account, err := c.network.LoadAccount(ctx, c.source)
	if err != nil {
		return err
	}
	c.sequence = account.Sequence
	c.stale = false
	metrics.SequenceResyncs.Inc()
	c.logger.Debug("Sequence cache refreshed", "source", c.source, "sequence", c.sequence)
	return nil
}

// acquire takes the per-account critical section. Blocked callers queue in
// roughly arrival order on the channel's wait list.
func (c *Coordinator) acquire(ctx context.Context) error {
	select {
	case c.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) release() {
	<-c.lock
}

// backoffDelay doubles per completed attempt: base, 2*base, 4*base, ...
func (c *Coordinator) backoffDelay(completed int) time.Duration {
	delay := c.backoffBase
	for i := 1; i < completed; i++ {
		delay *= 2
	}
	return delay
}

func (c *Coordinator) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func rejectionDetail(result *SettlementResult) string {
	if result.ResultCode != "" {
		return result.ResultCode
	}
	if result.ErrorMessage != "" {
		return result.ErrorMessage
	}
	return "settlement rejected"
}
