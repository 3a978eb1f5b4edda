package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/observability"
	"log/slog"
)

// SignalingRelay forwards call signaling between exactly two identities.
// Payloads are opaque; the relay guarantees routing, not protocol order.
type SignalingRelay struct {
	log      *slog.Logger
	registry contract.IRegistry
	calls    *CallTracker
	metrics  *observability.Metrics
}

func NewSignalingRelay(log *slog.Logger, registry contract.IRegistry, calls *CallTracker,
	metrics *observability.Metrics) *SignalingRelay {
	return &SignalingRelay{log: log, registry: registry, calls: calls, metrics: metrics}
}

// Relay delivers signal to the target's most recent connection.
// from must be the authenticated identity of the emitting connection.
// It reports whether an event was queued; a missing target is a silent drop.
func (s *SignalingRelay) Relay(from chat.Identity, signal event.Signal) bool {
	out, ok := event.Relayed(signal, from)
	if !ok {
		return false
	}
	to := signal.Target()
	target, ok := s.registry.ResolveOne(to)
	if !ok {
		s.metrics.Dropped(observability.ReasonNoTarget)
		s.log.Debug("signal target offline", "event", signal.Name(), "user_id", from, "target", to)
		return false
	}
	if err := target.Send(out); err != nil {
		s.metrics.Dropped(observability.ReasonQueueFull)
		s.log.Debug("signal dropped", "event", signal.Name(), "target", to, "error", err)
		return false
	}
	s.metrics.Delivered(string(out.Event))
	if s.calls != nil {
		s.calls.Observe(signal.Name(), from, to)
	}
	return true
}

// EndCalls hangs up every attempt involving identity and notifies connected counterparts.
func (s *SignalingRelay) EndCalls(identity chat.Identity) {
	if s.calls == nil {
		return
	}
	for _, peer := range s.calls.EndAll(identity) {
		s.Relay(identity, event.CallControl{Kind: event.HangupCall, To: peer})
	}
}
