package runtime

import (
	"chat-relay/domain/call"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCallTracker_Happy_Path(t *testing.T) {
	req := require.New(t)
	tracker := NewCallTracker(testLogger())

	tracker.Observe(event.SendCall, "A", "B")
	req.Equal(call.Ringing, tracker.State("A", "B"))

	// The callee answers: the signal goes from B to A
	tracker.Observe(event.AcceptCall, "B", "A")
	req.Equal(call.Accepted, tracker.State("A", "B"))

	tracker.Observe(event.SendOffer, "A", "B")
	req.Equal(call.Active, tracker.State("A", "B"))

	tracker.Observe(event.SendAnswer, "B", "A")
	req.Equal(call.Active, tracker.State("A", "B"))

	tracker.Observe(event.HangupCall, "B", "A")
	req.Equal(call.Idle, tracker.State("A", "B"))
}

func TestCallTracker_Reject_Ends_Attempt(t *testing.T) {
	req := require.New(t)
	tracker := NewCallTracker(testLogger())

	tracker.Observe(event.SendCall, "A", "B")
	tracker.Observe(event.RejectCall, "B", "A")

	req.Equal(call.Idle, tracker.State("A", "B"))
}

func TestCallTracker_Out_Of_Order_Signals_Are_Ignored(t *testing.T) {
	req := require.New(t)
	tracker := NewCallTracker(testLogger())

	// Given no invite, accept and offer change nothing
	tracker.Observe(event.AcceptCall, "B", "A")
	tracker.Observe(event.SendOffer, "A", "B")
	req.Equal(call.Idle, tracker.State("A", "B"))

	// Given a ringing call, an offer before accept does not activate it
	tracker.Observe(event.SendCall, "A", "B")
	tracker.Observe(event.SendOffer, "A", "B")
	req.Equal(call.Ringing, tracker.State("A", "B"))
}

func TestCallTracker_New_Invite_Replaces_Stale_Attempt(t *testing.T) {
	req := require.New(t)
	tracker := NewCallTracker(testLogger())

	tracker.Observe(event.SendCall, "A", "B")
	tracker.Observe(event.AcceptCall, "B", "A")

	// When A invites again
	tracker.Observe(event.SendCall, "A", "B")

	// Then the newest attempt wins
	req.Equal(call.Ringing, tracker.State("A", "B"))
}

func TestCallTracker_EndAll_Returns_Counterparts(t *testing.T) {
	req := require.New(t)
	tracker := NewCallTracker(testLogger())

	tracker.Observe(event.SendCall, "A", "B")
	tracker.Observe(event.SendCall, "C", "A")
	tracker.Observe(event.SendCall, "C", "D")

	peers := tracker.EndAll("A")

	req.ElementsMatch([]string{"B", "C"}, []string{peers[0].String(), peers[1].String()})
	req.Equal(call.Idle, tracker.State("A", "B"))
	req.Equal(call.Idle, tracker.State("C", "A"))
	req.Equal(call.Ringing, tracker.State("C", "D"))
}

func TestCallTracker_EndAll_Returns_Each_Counterpart_Once(t *testing.T) {
	req := require.New(t)
	tracker := NewCallTracker(testLogger())

	// Given crossed invites between A and B
	tracker.Observe(event.SendCall, "A", "B")
	tracker.Observe(event.SendCall, "B", "A")

	peers := tracker.EndAll("A")

	req.Equal([]chat.Identity{"B"}, peers)
	req.Equal(call.Idle, tracker.State("A", "B"))
	req.Equal(call.Idle, tracker.State("B", "A"))
}
