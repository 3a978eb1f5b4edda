package event

import (
	"bytes"
	"chat-relay/domain/chat"
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// blob accepts any JSON value except an absent one or null.
	_ = v.RegisterValidation("blob", func(fl validator.FieldLevel) bool {
		raw := bytes.TrimSpace(fl.Field().Bytes())
		return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
	})
	return v
}

// Inbound is an event received from a client, already validated.
type Inbound interface {
	Name() Name
}

// Signal is an inbound event addressed to exactly one other identity.
type Signal interface {
	Inbound
	Target() chat.Identity
}

type Joined struct {
	UserID  chat.Identity `json:"userId" validate:"required"`
	Members chat.Members  `json:"members"`
}

func (Joined) Name() Name { return ChatJoined }

type Left struct {
	UserID  chat.Identity `json:"userId" validate:"required"`
	Members chat.Members  `json:"members"`
}

func (Left) Name() Name { return ChatLeaved }

// MessagePosted requires the message key but accepts empty text.
type MessagePosted struct {
	ChatID  chat.ChatID  `json:"chatId" validate:"required"`
	Members chat.Members `json:"members"`
	Message *string      `json:"message" validate:"required"`
}

func (MessagePosted) Name() Name { return NewMessage }

func (m MessagePosted) Content() string {
	if m.Message == nil {
		return ""
	}
	return *m.Message
}

type Typing struct {
	Kind    Name         `json:"-"`
	ChatID  chat.ChatID  `json:"chatId" validate:"required"`
	Members chat.Members `json:"members"`
}

func (t Typing) Name() Name { return t.Kind }

// CallControl covers invite, accept, reject and hangup, which only carry a target.
type CallControl struct {
	Kind Name          `json:"-"`
	To   chat.Identity `json:"to" validate:"required"`
}

func (c CallControl) Name() Name            { return c.Kind }
func (c CallControl) Target() chat.Identity { return c.To }

type Offer struct {
	To    chat.Identity   `json:"to" validate:"required"`
	Offer json.RawMessage `json:"offer" validate:"blob"`
	Mode  json.RawMessage `json:"mode,omitempty"`
}

func (Offer) Name() Name              { return SendOffer }
func (o Offer) Target() chat.Identity { return o.To }

type Answer struct {
	To     chat.Identity   `json:"to" validate:"required"`
	Answer json.RawMessage `json:"answer" validate:"blob"`
}

func (Answer) Name() Name              { return SendAnswer }
func (a Answer) Target() chat.Identity { return a.To }

type IceCandidate struct {
	To        chat.Identity   `json:"to" validate:"required"`
	Candidate json.RawMessage `json:"candidate" validate:"blob"`
}

func (IceCandidate) Name() Name              { return SendIceCandidate }
func (i IceCandidate) Target() chat.Identity { return i.To }

// Decode turns a raw frame into its typed variant.
// Every failure wraps errors.ErrMalformedEvent.
func Decode(name Name, data json.RawMessage) (Inbound, error) {
	switch name {
	case ChatJoined:
		return decode[Joined](name, data)
	case ChatLeaved:
		return decode[Left](name, data)
	case NewMessage:
		return decode[MessagePosted](name, data)
	case StartTyping, StopTyping:
		t, err := decodeInto[Typing](name, data)
		if err != nil {
			return nil, err
		}
		t.Kind = name
		return t, nil
	case SendCall, AcceptCall, RejectCall, HangupCall, legacyCallReject, legacyCallHangup:
		c, err := decodeInto[CallControl](name, data)
		if err != nil {
			return nil, err
		}
		c.Kind = canonical(name)
		return c, nil
	case SendOffer:
		return decode[Offer](name, data)
	case SendAnswer:
		return decode[Answer](name, data)
	case SendIceCandidate:
		return decode[IceCandidate](name, data)
	default:
		return nil, fmt.Errorf("%w: unknown event %q", errors.ErrMalformedEvent, name)
	}
}

func canonical(name Name) Name {
	switch name {
	case legacyCallReject:
		return RejectCall
	case legacyCallHangup:
		return HangupCall
	default:
		return name
	}
}

func decode[T Inbound](name Name, data json.RawMessage) (Inbound, error) {
	v, err := decodeInto[T](name, data)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeInto[T any](name Name, data json.RawMessage) (T, error) {
	var v T
	raw := bytes.TrimSpace(data)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", errors.ErrMalformedEvent, name, err)
	}
	if err := validate.Struct(v); err != nil {
		return v, fmt.Errorf("%w: %s: %v", errors.ErrMalformedEvent, name, err)
	}
	return v, nil
}
