package workers

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	"fmt"
	"log/slog"
	"time"
)

var (
	_ contract.Worker        = (*PersistWorker)(nil)
	_ contract.IPersistQueue = (*PersistQueue)(nil)
)

// PersistQueue is the bounded hand-off between realtime delivery and storage.
type PersistQueue struct {
	jobs chan chat.PostMessageCommand
}

func NewPersistQueue(size int) *PersistQueue {
	if size <= 0 {
		size = 1
	}
	return &PersistQueue{jobs: make(chan chat.PostMessageCommand, size)}
}

// Enqueue never blocks; a saturated queue is reported as errors.ErrQueueFull.
func (q *PersistQueue) Enqueue(cmd chat.PostMessageCommand) error {
	select {
	case q.jobs <- cmd:
		return nil
	default:
		return errors.ErrQueueFull
	}
}

func (q *PersistQueue) Len() int { return len(q.jobs) }
func (q *PersistQueue) Cap() int { return cap(q.jobs) }

// PersistWorker drains the queue into the message store.
// Failures are logged and counted, never retried.
type PersistWorker struct {
	log     *slog.Logger
	queue   *PersistQueue
	store   contract.MessageStore
	timeout time.Duration
	metrics *observability.Metrics
}

func NewPersistWorker(log *slog.Logger, queue *PersistQueue, store contract.MessageStore,
	timeout time.Duration, metrics *observability.Metrics) *PersistWorker {
	return &PersistWorker{log: log, queue: queue, store: store, timeout: timeout, metrics: metrics}
}

func (w *PersistWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping worker")
			return ctx.Err()
		case cmd := <-w.queue.jobs:
			w.persist(ctx, cmd)
		}
	}
}

func (w *PersistWorker) persist(ctx context.Context, cmd chat.PostMessageCommand) {
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.store.CreateMessage(ctx, cmd); err != nil {
		w.metrics.StoreFailed()
		w.log.Error("message persistence failed",
			"chat_id", cmd.Chat, "user_id", cmd.Sender,
			"error", fmt.Errorf("%w: %v", errors.ErrStore, err))
	}
}
