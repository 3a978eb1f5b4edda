package chat

import (
	"time"
)

// Command is a store request scoped to one chat.
type Command interface {
	ChatID() ChatID
}

// PostMessageCommand asks the store to persist a message already delivered in realtime.
type PostMessageCommand struct {
	Chat      ChatID
	Sender    Identity
	Content   string
	CreatedAt time.Time
}

func (p PostMessageCommand) ChatID() ChatID {
	return p.Chat
}

type GetMessageCommand struct {
	Chat   ChatID
	Cursor *string
}

func (p GetMessageCommand) ChatID() ChatID {
	return p.Chat
}
