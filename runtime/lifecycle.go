// Package runtime holds the realtime routing core: connection registry, presence,
// chat fan-out, call signaling relay and the per connection lifecycle.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
)

type LifecycleConfig struct {
	OutboxSize int
	EventRate  float64
	EventBurst int
	// StrictPresenceIdentity rejects join and leave events naming another identity.
	StrictPresenceIdentity bool
}

// Lifecycle owns accept, dispatch and teardown of connections.
// Every transport goes through it, so routing rules live in one place.
type Lifecycle struct {
	log      *slog.Logger
	cfg      LifecycleConfig
	resolver contract.IdentityResolver
	registry contract.IRegistry
	presence contract.IPresence
	router   *ChatRouter
	relay    *SignalingRelay
	metrics  *observability.Metrics
}

func NewLifecycle(log *slog.Logger, cfg LifecycleConfig, resolver contract.IdentityResolver,
	registry contract.IRegistry, presence contract.IPresence, router *ChatRouter,
	relay *SignalingRelay, metrics *observability.Metrics) *Lifecycle {
	return &Lifecycle{
		log:      log,
		cfg:      cfg,
		resolver: resolver,
		registry: registry,
		presence: presence,
		router:   router,
		relay:    relay,
		metrics:  metrics,
	}
}

// Accept authenticates a new connection and registers it.
// A missing identity fails this connection only, with errors.ErrAuth.
func (l *Lifecycle) Accept(ctx context.Context, credential string) (*Connection, error) {
	identity, err := l.resolver.CurrentIdentity(ctx, credential)
	if err == nil && identity == "" {
		err = errors.ErrAuth
	}
	if err != nil {
		l.metrics.AuthFailed()
		if !stderrors.Is(err, errors.ErrAuth) {
			err = fmt.Errorf("%w: %v", errors.ErrAuth, err)
		}
		return nil, err
	}
	return l.Register(identity), nil
}

// Register opens a connection for an identity already authenticated by the transport.
func (l *Lifecycle) Register(identity chat.Identity) *Connection {
	conn := NewConnection(identity, l.cfg.OutboxSize, WithRateLimit(l.cfg.EventRate, l.cfg.EventBurst))
	l.registry.Register(identity, conn)
	l.metrics.ConnectionOpened()
	l.log.Info("connection accepted", "user_id", identity, "connection_id", conn.ID())
	return conn
}

// Handle decodes and dispatches one inbound frame.
// A malformed or rate limited event is dropped and reported; the connection stays open.
func (l *Lifecycle) Handle(ctx context.Context, conn *Connection, frame event.Frame) error {
	if !conn.Allow() {
		l.metrics.Dropped(observability.ReasonRateLimited)
		l.log.Debug("event rate limited", "event", frame.Event, "connection_id", conn.ID())
		return nil
	}
	in, err := event.Decode(frame.Event, frame.Data)
	if err != nil {
		l.metrics.Dropped(observability.ReasonMalformed)
		l.log.Debug("malformed event dropped", "event", frame.Event,
			"connection_id", conn.ID(), "user_id", conn.Identity(), "error", err)
		return err
	}
	l.metrics.Inbound(string(in.Name()))
	return l.dispatch(ctx, conn, in)
}

func (l *Lifecycle) dispatch(ctx context.Context, conn *Connection, in event.Inbound) error {
	switch e := in.(type) {
	case event.Joined:
		if err := l.checkPresenceIdentity(conn, e.UserID); err != nil {
			return err
		}
		l.router.OnJoin(e.UserID, e.Members)
	case event.Left:
		if err := l.checkPresenceIdentity(conn, e.UserID); err != nil {
			return err
		}
		l.router.OnLeave(e.UserID, e.Members)
	case event.MessagePosted:
		l.router.RouteMessage(ctx, e.ChatID, e.Members, conn.Identity(), e.Content())
	case event.Typing:
		l.router.RouteTyping(ctx, e.Kind, e.ChatID, e.Members, conn.ID())
	case event.Signal:
		l.relay.Relay(conn.Identity(), e)
	default:
		return fmt.Errorf("%w: unhandled event %s", errors.ErrMalformedEvent, in.Name())
	}
	return nil
}

func (l *Lifecycle) checkPresenceIdentity(conn *Connection, claimed chat.Identity) error {
	if claimed == conn.Identity() {
		return nil
	}
	if l.cfg.StrictPresenceIdentity {
		l.metrics.Dropped(observability.ReasonMalformed)
		return fmt.Errorf("%w: presence for %s sent by %s", errors.ErrMalformedEvent, claimed, conn.Identity())
	}
	l.log.Warn("presence event for another identity", "user_id", conn.Identity(), "claimed", claimed)
	return nil
}

// Disconnect tears the connection down. The handle leaves the registry before
// anything else so no later event can reach it. The identity then goes offline
// and presence is broadcast to every live connection; other devices of the same
// identity are back online with their next chat:joined. Calls end only with the
// identity's last connection.
func (l *Lifecycle) Disconnect(conn *Connection) {
	owner, remaining, ok := l.registry.Unregister(conn.ID())
	conn.Close()
	if !ok {
		return
	}
	l.metrics.ConnectionClosed()
	l.log.Info("connection closed", "user_id", owner, "connection_id", conn.ID(), "remaining", remaining)
	if remaining == 0 {
		l.relay.EndCalls(owner)
	}
	l.presence.MarkOffline(owner)
	l.router.BroadcastPresence()
}

// CloseAll closes every live connection. Transports then observe Done and tear down.
func (l *Lifecycle) CloseAll() {
	for _, h := range l.registry.All() {
		h.Close()
	}
}
