// internal/stellar/coordinator_test.go
package stellar

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Uyoxy/NexaFx-backend/internal/util"
)

const testSource = "GBLEDGERACCOUNT"

// fakeNetwork scripts per-submission outcomes while tracking every call.
// Outcomes are consumed in submission order; once the script runs out every
// further submission succeeds.
type fakeNetwork struct {
	mu sync.Mutex

	ledgerSequence int64
	script         []Outcome

	loadCalls          int
	submittedSequences []int64
}

func newFakeNetwork(sequence int64, script ...Outcome) *fakeNetwork {
	return &fakeNetwork{ledgerSequence: sequence, script: script}
}

func (f *fakeNetwork) LoadAccount(_ context.Context, address string) (*AccountDetails, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	return &AccountDetails{Address: address, Sequence: f.ledgerSequence}, nil
}

func (f *fakeNetwork) BuildAndSign(params PaymentParams) (*SignedPayload, error) {
	return &SignedPayload{
		Envelope: "envelope",
		Hash:     fmt.Sprintf("hash-%d", params.Sequence),
		Sequence: params.Sequence,
	}, nil
}

func (f *fakeNetwork) Submit(_ context.Context, payload *SignedPayload) (*SettlementResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submittedSequences = append(f.submittedSequences, payload.Sequence)

	outcome := OutcomeSuccess
	if len(f.script) > 0 {
		outcome = f.script[0]
		f.script = f.script[1:]
	}

	switch outcome {
	case OutcomeSuccess:
		f.ledgerSequence = payload.Sequence
		return &SettlementResult{
			Successful:      true,
			Outcome:         OutcomeSuccess,
			TransactionHash: payload.Hash,
			Ledger:          100,
		}, nil
	case OutcomeSequenceConflict:
		// A competing signer spent the slot first.
		f.ledgerSequence = payload.Sequence
		return &SettlementResult{
			Outcome:    OutcomeSequenceConflict,
			ResultCode: "tx_bad_seq",
		}, nil
	case OutcomeRejected:
		return &SettlementResult{
			Outcome:    OutcomeRejected,
			ResultCode: "op_underfunded",
		}, nil
	default:
		return &SettlementResult{
			Outcome:      OutcomeTransient,
			ErrorMessage: "gateway timeout",
		}, nil
	}
}

func testPayment() Payment {
	return Payment{
		Destination: testSource,
		Amount:      decimal.NewFromInt(10),
		Asset:       NativeAssetCode,
		Memo:        "TXN-1-ABCDEF",
	}
}

func fastCoordinator(network Network, opts ...CoordinatorOption) *Coordinator {
	opts = append([]CoordinatorOption{WithBackoffBase(time.Millisecond)}, opts...)
	return NewCoordinator(network, testSource, util.GetLogger(), opts...)
}

func TestSubmitAssignsNextSequence(t *testing.T) {
	network := newFakeNetwork(41)
	coordinator := fastCoordinator(network)

	result, err := coordinator.Submit(context.Background(), testPayment())

	require.NoError(t, err)
	assert.True(t, result.Successful)
	assert.Equal(t, []int64{42}, network.submittedSequences)
	assert.Equal(t, 1, network.loadCalls)
}

func TestSubmitSerializesConcurrentCallers(t *testing.T) {
	network := newFakeNetwork(100)
	coordinator := fastCoordinator(network)

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coordinator.Submit(context.Background(), testPayment())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	// One refresh on first use, then consecutive sequences with no gaps.
	assert.Equal(t, 1, network.loadCalls)
	require.Len(t, network.submittedSequences, callers)
	seen := make(map[int64]struct{}, callers)
	for _, seq := range network.submittedSequences {
		assert.GreaterOrEqual(t, seq, int64(101))
		assert.LessOrEqual(t, seq, int64(100+callers))
		seen[seq] = struct{}{}
	}
	assert.Len(t, seen, callers, "every submission must spend a distinct sequence")
}

func TestSubmitRecoversFromSequenceConflict(t *testing.T) {
	network := newFakeNetwork(55, OutcomeSequenceConflict)
	coordinator := fastCoordinator(network)

	result, err := coordinator.Submit(context.Background(), testPayment())

	require.NoError(t, err)
	assert.True(t, result.Successful)
	// The conflict forced a second refresh; the retry lands one slot later.
	assert.Equal(t, 2, network.loadCalls)
	assert.Equal(t, []int64{56, 57}, network.submittedSequences)
}

func TestSubmitExhaustedConflictsDesynchronized(t *testing.T) {
	network := newFakeNetwork(50,
		OutcomeSequenceConflict, OutcomeSequenceConflict, OutcomeSequenceConflict)
	coordinator := fastCoordinator(network, WithMaxAttempts(3))

	_, err := coordinator.Submit(context.Background(), testPayment())
	assert.ErrorIs(t, err, util.ErrSettlementDesynchronized)

	// The lock must be free again: a fresh submission proceeds.
	result, err := coordinator.Submit(context.Background(), testPayment())
	require.NoError(t, err)
	assert.True(t, result.Successful)
}

func TestSubmitRetriesTransientWithSameSequence(t *testing.T) {
	network := newFakeNetwork(10, OutcomeTransient, OutcomeTransient)
	coordinator := fastCoordinator(network)

	result, err := coordinator.Submit(context.Background(), testPayment())

	require.NoError(t, err)
	assert.True(t, result.Successful)
	// No resync between transient retries; the candidate is reused as-is.
	assert.Equal(t, []int64{11, 11, 11}, network.submittedSequences)
	assert.Equal(t, 1, network.loadCalls)
}

func TestSubmitExhaustedTransientsUnavailable(t *testing.T) {
	network := newFakeNetwork(10,
		OutcomeTransient, OutcomeTransient, OutcomeTransient)
	coordinator := fastCoordinator(network, WithMaxAttempts(3))

	_, err := coordinator.Submit(context.Background(), testPayment())
	assert.ErrorIs(t, err, util.ErrSettlementUnavailable)
}

func TestSubmitRejectionIsTerminalAndResyncs(t *testing.T) {
	network := newFakeNetwork(70, OutcomeRejected)
	coordinator := fastCoordinator(network)

	result, err := coordinator.Submit(context.Background(), testPayment())

	assert.ErrorIs(t, err, util.ErrSettlementRejected)
	require.NotNil(t, result)
	assert.Equal(t, "op_underfunded", result.ResultCode)
	assert.Len(t, network.submittedSequences, 1, "rejections are never retried")
	// Initial refresh plus the post-rejection one.
	assert.Equal(t, 2, network.loadCalls)
}

func TestSubmitHonorsContextWhileWaiting(t *testing.T) {
	network := newFakeNetwork(10)
	coordinator := fastCoordinator(network)

	// Hold the lock so the second caller has to wait.
	require.NoError(t, coordinator.acquire(context.Background()))
	defer coordinator.release()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	_, err := coordinator.Submit(ctx, testPayment())
	assert.ErrorIs(t, err, util.ErrSettlementUnavailable)
	assert.Empty(t, network.submittedSequences)
}
