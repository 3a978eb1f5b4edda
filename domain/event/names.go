// Package event defines the wire vocabulary exchanged with connected clients.
// Names are part of the client contract and must not change.
package event

import "encoding/json"

type Name string

const (
	ChatJoined      Name = "chat:joined"
	ChatLeaved      Name = "chat:leaved"
	NewMessage      Name = "new:message"
	NewMessageAlert Name = "new:message:alert"
	StartTyping     Name = "start:typing"
	StopTyping      Name = "stop:typing"
	OnlineUsers     Name = "online:users"

	SendCall     Name = "send:call"
	ReceiveCall  Name = "receive:call"
	AcceptCall   Name = "accept:call"
	CallAccepted Name = "call:accepted"
	RejectCall   Name = "reject:call"
	CallRejected Name = "call:rejected"
	HangupCall   Name = "hangup:call"
	CallHangup   Name = "call:hangup"

	SendOffer           Name = "send:offer"
	ReceiveOffer        Name = "receive:offer"
	SendAnswer          Name = "send:answer"
	ReceiveAnswer       Name = "receive:answer"
	SendIceCandidate    Name = "send-ice-candidate"
	ReceiveIceCandidate Name = "receive-ice-candidate"

	// Inbound aliases still emitted by older clients.
	legacyCallHangup Name = CallHangup
	legacyCallReject Name = "call:reject"
)

// Frame is the transport envelope of every event in both directions.
type Frame struct {
	Event Name            `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
