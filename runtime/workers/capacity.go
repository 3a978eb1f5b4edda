package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"time"
)

var _ contract.Worker = (*CapacityWorker)(nil)

const defaultMetricInterval = 5 * time.Second

// Sampled is a bounded queue whose fill level can be read without blocking.
type Sampled interface {
	Len() int
	Cap() int
}

type NamedQueue struct {
	Name  string
	Queue Sampled
}

// CapacityWorker periodically reports the length and capacity of internal queues.
// Reading len and cap is non-blocking, so sampling never interferes with producers.
type CapacityWorker struct {
	log            *slog.Logger
	queues         []NamedQueue
	metrics        *observability.Metrics
	metricInterval time.Duration
}

func NewCapacityWorker(log *slog.Logger, queues []NamedQueue, metrics *observability.Metrics,
	metricInterval time.Duration) *CapacityWorker {
	if metricInterval <= 0 {
		metricInterval = defaultMetricInterval
	}
	return &CapacityWorker{log: log, queues: queues, metrics: metrics, metricInterval: metricInterval}
}

func (w *CapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			w.Sample()
		}
	}
}

// Sample records the current fill level of every queue.
func (w *CapacityWorker) Sample() {
	for _, nq := range w.queues {
		length, capacity := nq.Queue.Len(), nq.Queue.Cap()
		w.metrics.QueueDepth(nq.Name, length, capacity)
		if capacity > 0 && length == capacity {
			w.log.Warn("queue saturated", "queue", nq.Name, "capacity", capacity)
		}
	}
}
