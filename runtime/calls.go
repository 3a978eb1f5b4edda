package runtime

import (
	"chat-relay/domain/call"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"
)

// CallTracker follows call attempts per ordered (caller, callee) pair.
// It observes relayed signals; it never blocks routing.
type CallTracker struct {
	mu       sync.Mutex
	log      *slog.Logger
	attempts map[call.Pair]*call.Attempt
	now      func() time.Time
}

func NewCallTracker(log *slog.Logger) *CallTracker {
	return &CallTracker{
		log:      log,
		attempts: make(map[call.Pair]*call.Attempt),
		now:      time.Now,
	}
}

// Observe applies the state change implied by a signal from sender to target.
func (t *CallTracker) Observe(kind event.Name, from, to chat.Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	switch kind {
	case event.SendCall:
		pair := call.Pair{Caller: from, Callee: to}
		if stale, ok := t.attempts[pair]; ok && !stale.State.Terminal() {
			t.log.Info("replacing stale call attempt", "caller", from, "callee", to, "state", stale.State)
		}
		attempt := call.NewAttempt(pair, now)
		_ = attempt.Transition(call.Ringing, now)
		t.attempts[pair] = attempt
	case event.AcceptCall:
		t.move(call.Pair{Caller: to, Callee: from}, call.Accepted, now)
	case event.RejectCall:
		t.move(call.Pair{Caller: to, Callee: from}, call.Rejected, now)
	case event.SendOffer, event.SendAnswer:
		if pair, ok := t.findLocked(from, to); ok && t.attempts[pair].State == call.Accepted {
			t.move(pair, call.Active, now)
		}
	case event.HangupCall:
		if pair, ok := t.findLocked(from, to); ok {
			t.move(pair, call.Ended, now)
		}
	}
}

// State returns the state of the attempt for the ordered pair, Idle when none.
func (t *CallTracker) State(caller, callee chat.Identity) call.State {
	t.mu.Lock()
	defer t.mu.Unlock()
	if a, ok := t.attempts[call.Pair{Caller: caller, Callee: callee}]; ok {
		return a.State
	}
	return call.Idle
}

// EndAll ends every attempt involving identity and returns each counterpart once.
func (t *CallTracker) EndAll(identity chat.Identity) []chat.Identity {
	t.mu.Lock()
	defer t.mu.Unlock()

	var peers []chat.Identity
	for pair := range t.attempts {
		if !pair.Involves(identity) {
			continue
		}
		peers = append(peers, pair.Other(identity))
		delete(t.attempts, pair)
	}
	return lo.Uniq(peers)
}

func (t *CallTracker) findLocked(a, b chat.Identity) (call.Pair, bool) {
	for _, pair := range []call.Pair{{Caller: a, Callee: b}, {Caller: b, Callee: a}} {
		if _, ok := t.attempts[pair]; ok {
			return pair, true
		}
	}
	return call.Pair{}, false
}

func (t *CallTracker) move(pair call.Pair, next call.State, now time.Time) {
	attempt, ok := t.attempts[pair]
	if !ok {
		t.log.Debug("signal for unknown call attempt", "caller", pair.Caller, "callee", pair.Callee, "state", next)
		return
	}
	if err := attempt.Transition(next, now); err != nil {
		t.log.Debug("call transition ignored", "error", err)
		return
	}
	if next.Terminal() {
		delete(t.attempts, pair)
	}
}
