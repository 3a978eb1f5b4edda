package chat

import (
	"time"

	"github.com/google/uuid"
)

// CreatedAtLayout is the timestamp layout used on the wire (UTC, millisecond precision).
const CreatedAtLayout = "2006-01-02T15:04:05.000Z07:00"

// Message represents an immutable chat message.
type Message struct {
	ID        uuid.UUID
	Chat      ChatID
	Sender    Identity
	Content   string
	CreatedAt time.Time
}

func NewMessage(chatID ChatID, sender Identity, content string, at time.Time) Message {
	return Message{
		ID:        uuid.New(),
		Chat:      chatID,
		Sender:    sender,
		Content:   content,
		CreatedAt: at.UTC(),
	}
}
