package call

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAttempt_HappyPath(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	attempt := NewAttempt(Pair{Caller: "alice", Callee: "bob"}, now)

	req.Equal(Idle, attempt.State)
	req.NoError(attempt.Transition(Ringing, now))
	req.NoError(attempt.Transition(Accepted, now))
	req.NoError(attempt.Transition(Active, now.Add(time.Second)))
	req.NoError(attempt.Transition(Ended, now.Add(2*time.Second)))

	req.Equal(Ended, attempt.State)
	req.Equal(now.Add(2*time.Second), attempt.UpdatedAt)
	req.True(attempt.State.Terminal())
}

func TestAttempt_RejectIsTerminal(t *testing.T) {
	req := require.New(t)
	now := time.Now()
	attempt := NewAttempt(Pair{Caller: "alice", Callee: "bob"}, now)

	req.NoError(attempt.Transition(Ringing, now))
	req.NoError(attempt.Transition(Rejected, now))

	// Then nothing else can happen, not even a hangup
	req.Error(attempt.Transition(Ended, now))
	req.Error(attempt.Transition(Accepted, now))
	req.Equal(Rejected, attempt.State)
}

func TestState_CanMoveTo(t *testing.T) {
	tests := []struct {
		from, to State
		allowed  bool
	}{
		{Idle, Ringing, true},
		{Idle, Accepted, false},
		{Idle, Ended, true},
		{Ringing, Accepted, true},
		{Ringing, Rejected, true},
		{Ringing, Active, false},
		{Ringing, Ended, true},
		{Accepted, Active, true},
		{Accepted, Rejected, false},
		{Accepted, Ended, true},
		{Active, Active, false},
		{Active, Ended, true},
		{Ended, Ringing, false},
		{Rejected, Ringing, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			require.Equal(t, tt.allowed, tt.from.CanMoveTo(tt.to))
		})
	}
}

func TestPair_Other(t *testing.T) {
	req := require.New(t)
	pair := Pair{Caller: "alice", Callee: "bob"}
	req.Equal("bob", string(pair.Other("alice")))
	req.Equal("alice", string(pair.Other("bob")))
	req.True(pair.Involves("bob"))
	req.False(pair.Involves("carol"))
}
