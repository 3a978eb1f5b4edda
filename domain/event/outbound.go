package event

import (
	"chat-relay/domain/chat"
	"encoding/json"
)

// Outbound is an event pushed to a connection.
type Outbound struct {
	Event   Name
	Payload any
}

// Frame encodes the outbound event into its transport envelope.
func (o Outbound) Frame() (Frame, error) {
	if o.Payload == nil {
		return Frame{Event: o.Event}, nil
	}
	data, err := json.Marshal(o.Payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Event: o.Event, Data: data}, nil
}

type DeliveredMessage struct {
	Content   string        `json:"content"`
	Sender    chat.Identity `json:"sender"`
	Chat      chat.ChatID   `json:"chat"`
	CreatedAt string        `json:"createdAt"`
}

type MessageDelivery struct {
	ChatID  chat.ChatID      `json:"chatId"`
	Message DeliveredMessage `json:"message"`
}

type ChatRef struct {
	ChatID chat.ChatID `json:"chatId"`
}

type From struct {
	From chat.Identity `json:"from"`
}

type OfferDelivery struct {
	Offer json.RawMessage `json:"offer"`
	From  chat.Identity   `json:"from"`
	Mode  json.RawMessage `json:"mode,omitempty"`
}

type AnswerDelivery struct {
	Answer json.RawMessage `json:"answer"`
	From   chat.Identity   `json:"from"`
}

type IceCandidateDelivery struct {
	Candidate json.RawMessage `json:"candidate"`
	From      chat.Identity   `json:"from"`
}

func NewMessageEvent(m chat.Message) Outbound {
	return Outbound{Event: NewMessage, Payload: MessageDelivery{
		ChatID: m.Chat,
		Message: DeliveredMessage{
			Content:   m.Content,
			Sender:    m.Sender,
			Chat:      m.Chat,
			CreatedAt: m.CreatedAt.Format(chat.CreatedAtLayout),
		},
	}}
}

func NewMessageAlertEvent(chatID chat.ChatID) Outbound {
	return Outbound{Event: NewMessageAlert, Payload: ChatRef{ChatID: chatID}}
}

func TypingEvent(kind Name, chatID chat.ChatID) Outbound {
	return Outbound{Event: kind, Payload: ChatRef{ChatID: chatID}}
}

// OnlineUsersEvent always encodes a JSON array, never null.
func OnlineUsersEvent(online []chat.Identity) Outbound {
	if online == nil {
		online = []chat.Identity{}
	}
	return Outbound{Event: OnlineUsers, Payload: online}
}

// Relayed maps an inbound signal to the event delivered to its target,
// stamped with the authenticated sender.
func Relayed(s Signal, from chat.Identity) (Outbound, bool) {
	switch v := s.(type) {
	case CallControl:
		name, ok := callReplies[v.Kind]
		if !ok {
			return Outbound{}, false
		}
		return Outbound{Event: name, Payload: From{From: from}}, true
	case Offer:
		return Outbound{Event: ReceiveOffer, Payload: OfferDelivery{Offer: v.Offer, From: from, Mode: v.Mode}}, true
	case Answer:
		return Outbound{Event: ReceiveAnswer, Payload: AnswerDelivery{Answer: v.Answer, From: from}}, true
	case IceCandidate:
		return Outbound{Event: ReceiveIceCandidate, Payload: IceCandidateDelivery{Candidate: v.Candidate, From: from}}, true
	default:
		return Outbound{}, false
	}
}

var callReplies = map[Name]Name{
	SendCall:   ReceiveCall,
	AcceptCall: CallAccepted,
	RejectCall: CallRejected,
	HangupCall: CallHangup,
}
