// internal/notifier/nats.go
package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

const outboxCapacity = 256

type outboxEntry struct {
	subject string
	payload interface{}
}

// NATSNotifier publishes outcome events to NATS through a bounded in-memory
// outbox drained by a single goroutine, so a slow or unreachable broker never
// blocks the settlement path. When the outbox is full the event is dropped
// and logged.
type NATSNotifier struct {
	conn   *nats.Conn
	outbox chan outboxEntry
	done   chan struct{}
	logger *slog.Logger
}

// NewNATSNotifier connects to the broker and starts the outbox drain.
func NewNATSNotifier(url, name string, logger *slog.Logger) (*NATSNotifier, error) {
	conn, err := nats.Connect(url, nats.Name(name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	n := &NATSNotifier{
		conn:   conn,
		outbox: make(chan outboxEntry, outboxCapacity),
		done:   make(chan struct{}),
		logger: logger,
	}
	go n.drain()
	return n, nil
}

func (n *NATSNotifier) drain() {
	defer close(n.done)
	for entry := range n.outbox {
		data, err := json.Marshal(entry.payload)
		if err != nil {
			n.logger.Error("Failed to marshal outcome event", "subject", entry.subject, "error", err)
			continue
		}
		if err := n.conn.Publish(entry.subject, data); err != nil {
			n.logger.Warn("Failed to publish outcome event", "subject", entry.subject, "error", err)
		}
	}
}

func (n *NATSNotifier) enqueue(subject string, payload interface{}) {
	select {
	case n.outbox <- outboxEntry{subject: subject, payload: payload}:
	default:
		n.logger.Warn("Outcome event dropped, outbox full", "subject", subject)
	}
}

// TransactionSettled publishes a transaction.settled event.
func (n *NATSNotifier) TransactionSettled(event TransactionSettledEvent) {
	n.enqueue(SubjectTransactionSettled, event)
}

// TransactionFailed publishes a transaction.failed event.
func (n *NATSNotifier) TransactionFailed(event TransactionFailedEvent) {
	n.enqueue(SubjectTransactionFailed, event)
}

// SwapCompleted publishes a swap.completed event.
func (n *NATSNotifier) SwapCompleted(event SwapCompletedEvent) {
	n.enqueue(SubjectSwapCompleted, event)
}

// Close drains pending events, flushes the connection and closes it.
func (n *NATSNotifier) Close() {
	close(n.outbox)
	<-n.done
	if err := n.conn.Flush(); err != nil {
		n.logger.Warn("Failed to flush NATS connection", "error", err)
	}
	n.conn.Close()
}
