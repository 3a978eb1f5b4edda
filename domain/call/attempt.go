// Package call models one signaling exchange between a caller and a callee.
package call

import (
	"chat-relay/domain/chat"
	"fmt"
	"time"
)

type State int

const (
	Idle State = iota
	Ringing
	Accepted
	Active
	Rejected
	Ended
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Ringing:
		return "ringing"
	case Accepted:
		return "accepted"
	case Active:
		return "active"
	case Rejected:
		return "rejected"
	case Ended:
		return "ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == Rejected || s == Ended
}

// Pair is the ordered (caller, callee) key of an attempt.
type Pair struct {
	Caller chat.Identity
	Callee chat.Identity
}

func (p Pair) Involves(id chat.Identity) bool {
	return p.Caller == id || p.Callee == id
}

// Other returns the counterpart of id within the pair.
func (p Pair) Other(id chat.Identity) chat.Identity {
	if p.Caller == id {
		return p.Callee
	}
	return p.Caller
}

type Attempt struct {
	Pair      Pair
	State     State
	StartedAt time.Time
	UpdatedAt time.Time
}

func NewAttempt(pair Pair, at time.Time) *Attempt {
	return &Attempt{Pair: pair, State: Idle, StartedAt: at, UpdatedAt: at}
}

// Transition moves the attempt to next if the move is allowed.
// Hangup (Ended) is reachable from every non terminal state.
func (a *Attempt) Transition(next State, at time.Time) error {
	if !a.State.CanMoveTo(next) {
		return fmt.Errorf("call %s -> %s: invalid transition %s -> %s",
			a.Pair.Caller, a.Pair.Callee, a.State, next)
	}
	a.State = next
	a.UpdatedAt = at
	return nil
}

func (s State) CanMoveTo(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == Ended {
		return true
	}
	switch s {
	case Idle:
		return next == Ringing
	case Ringing:
		return next == Accepted || next == Rejected
	case Accepted:
		return next == Active
	case Active:
		return false
	default:
		return false
	}
}
