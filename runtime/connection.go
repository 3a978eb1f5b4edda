package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

var _ contract.Handle = (*Connection)(nil)

const defaultOutboxSize = 64

// Connection is the transport independent side of one live socket.
// Outbound events are queued on a bounded outbox drained by the transport writer.
// The outbox is never closed so concurrent senders cannot panic; Done signals shutdown.
type Connection struct {
	id       chat.ConnectionID
	identity chat.Identity
	outbox   chan event.Outbound
	limiter  *rate.Limiter

	done      chan struct{}
	closeOnce sync.Once
}

type ConnectionOption func(*Connection)

// WithRateLimit bounds inbound events to eventsPerSecond with the given burst.
// A non positive rate disables limiting.
func WithRateLimit(eventsPerSecond float64, burst int) ConnectionOption {
	return func(c *Connection) {
		if eventsPerSecond <= 0 {
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(eventsPerSecond), burst)
	}
}

func NewConnection(identity chat.Identity, outboxSize int, opts ...ConnectionOption) *Connection {
	if outboxSize <= 0 {
		outboxSize = defaultOutboxSize
	}
	c := &Connection{
		id:       chat.ConnectionID(uuid.NewString()),
		identity: identity,
		outbox:   make(chan event.Outbound, outboxSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Connection) ID() chat.ConnectionID   { return c.id }
func (c *Connection) Identity() chat.Identity { return c.identity }

// Send queues out without blocking.
func (c *Connection) Send(out event.Outbound) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.outbox <- out:
		return nil
	default:
		return errors.ErrQueueFull
	}
}

// Outbox is drained by the transport writer.
func (c *Connection) Outbox() <-chan event.Outbound { return c.outbox }

func (c *Connection) Done() <-chan struct{} { return c.done }

// Close is idempotent.
func (c *Connection) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Allow reports whether one more inbound event fits the rate limit.
func (c *Connection) Allow() bool {
	return c.limiter == nil || c.limiter.Allow()
}
