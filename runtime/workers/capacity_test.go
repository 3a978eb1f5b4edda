package workers

import (
	"chat-relay/domain/chat"
	"chat-relay/observability"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	queue := NewPersistQueue(4)
	req.NoError(queue.Enqueue(chat.PostMessageCommand{Chat: "c1"}))
	req.NoError(queue.Enqueue(chat.PostMessageCommand{Chat: "c1"}))

	worker := NewCapacityWorker(slog.Default(), []NamedQueue{{Name: "persist", Queue: queue}}, metrics, time.Second)

	// When the queues are sampled
	worker.Sample()

	// Then the gauges reflect the fill level
	expected := `
# HELP relay_queue_length Sampled number of items waiting in an internal queue.
# TYPE relay_queue_length gauge
relay_queue_length{queue="persist"} 2
`
	req.NoError(testutil.GatherAndCompare(reg, strings.NewReader(expected), "relay_queue_length"))
}

func TestCapacityWorker_Stops_On_Cancel(t *testing.T) {
	req := require.New(t)
	worker := NewCapacityWorker(slog.Default(), nil, nil, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	req.NoError(worker.Run(ctx))
}
