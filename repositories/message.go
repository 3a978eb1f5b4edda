package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ contract.MessageStore = (*MessageRepository)(nil)

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) *MessageRepository {
	return &MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// CreateMessage persists a message in BadgerDB.
// The key is formatted as "msg:{chat_id}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m *MessageRepository) CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	message := chat.NewMessage(cmd.Chat, cmd.Sender, cmd.Content, cmd.CreatedAt)
	record, err := toRecord(message)
	if err != nil {
		return err
	}
	bytes, err := proto.Marshal(record)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("%s%019d:%s", messagePrefix(cmd), message.CreatedAt.UnixNano(), message.ID)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages pages through a chat newest-first using a reverse prefix scan.
// The returned cursor is passed back to fetch the next, older page.
func (m *MessageRepository) GetMessages(cmd chat.GetMessageCommand) ([]chat.Message, *string, error) {
	var byteMessages [][]byte
	var lastKey string
	prefixStr := messagePrefix(cmd)
	prefix := []byte(prefixStr)

	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		seekKey := []byte(prefixStr + "9999999999999999999")
		if cmd.Cursor != nil {
			seekKey = []byte(prefixStr + *cmd.Cursor)
		}
		it.Seek(seekKey)

		// The cursor itself was the last item of the previous page
		if cmd.Cursor != nil && it.ValidForPrefix(prefix) && string(it.Item().Key()) == string(seekKey) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[len(prefix):])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			byteMessages = append(byteMessages, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages := make([]chat.Message, 0, len(byteMessages))
	for _, b := range byteMessages {
		var record structpb.Struct
		if err = proto.Unmarshal(b, &record); err != nil {
			return nil, nil, err
		}
		message, err := fromRecord(&record)
		if err != nil {
			return nil, nil, err
		}
		messages = append(messages, message)
	}
	if lastKey == "" {
		return messages, nil, nil
	}
	return messages, &lastKey, nil
}

// messagePrefix escapes the chat id so that one chat never prefixes another.
func messagePrefix(cmd chat.Command) string {
	return "msg:" + url.QueryEscape(cmd.ChatID().String()) + ":"
}

func toRecord(m chat.Message) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"id":      m.ID.String(),
		"chat":    m.Chat.String(),
		"sender":  m.Sender.String(),
		"content": m.Content,
		"at":      strconv.FormatInt(m.CreatedAt.UnixNano(), 10),
	})
}

func fromRecord(record *structpb.Struct) (chat.Message, error) {
	fields := record.GetFields()
	parsedID, err := uuid.Parse(fields["id"].GetStringValue())
	if err != nil {
		return chat.Message{}, err
	}
	at, err := strconv.ParseInt(fields["at"].GetStringValue(), 10, 64)
	if err != nil {
		return chat.Message{}, err
	}
	return chat.Message{
		ID:        parsedID,
		Chat:      chat.ChatID(fields["chat"].GetStringValue()),
		Sender:    chat.Identity(fields["sender"].GetStringValue()),
		Content:   fields["content"].GetStringValue(),
		CreatedAt: time.Unix(0, at).UTC(),
	}, nil
}
