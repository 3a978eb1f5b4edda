package repositories

import (
	"chat-relay/domain/chat"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func contents(messages []chat.Message) []string {
	return lo.Map(messages, func(m chat.Message, _ int) string { return m.Content })
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	// Given three messages posted one minute apart
	commands := []chat.PostMessageCommand{
		{Chat: "c1", Sender: "alice", Content: "first", CreatedAt: at},
		{Chat: "c1", Sender: "bob", Content: "second", CreatedAt: at.Add(1 * time.Minute)},
		{Chat: "c1", Sender: "clara", Content: "third", CreatedAt: at.Add(2 * time.Minute)},
	}
	for _, cmd := range commands {
		req.NoError(repository.CreateMessage(ctx, cmd))
	}

	// When the chat is read
	messages, cursor, err := repository.GetMessages(chat.GetMessageCommand{Chat: "c1"})

	// Then messages come newest first with their metadata intact
	req.NoError(err)
	req.NotNil(cursor)
	req.Equal([]string{"third", "second", "first"}, contents(messages))
	req.Equal(chat.Identity("clara"), messages[0].Sender)
	req.Equal(chat.ChatID("c1"), messages[0].Chat)
	req.True(at.Add(2 * time.Minute).Equal(messages[0].CreatedAt))
}

func Test_Record_Multiple_Message_And_Limit(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), lo.ToPtr(2))
	at := time.Now().UTC()

	for i, content := range []string{"first", "second", "third"} {
		req.NoError(repository.CreateMessage(ctx, chat.PostMessageCommand{
			Chat: "c1", Sender: "alice", Content: content, CreatedAt: at.Add(time.Duration(i) * time.Second),
		}))
	}

	// When the first page is read
	page, cursor, err := repository.GetMessages(chat.GetMessageCommand{Chat: "c1"})
	req.NoError(err)
	req.Equal([]string{"third", "second"}, contents(page))

	// Then the cursor leads to the remaining older message
	page, cursor, err = repository.GetMessages(chat.GetMessageCommand{Chat: "c1", Cursor: cursor})
	req.NoError(err)
	req.Equal([]string{"first"}, contents(page))

	page, cursor, err = repository.GetMessages(chat.GetMessageCommand{Chat: "c1", Cursor: cursor})
	req.NoError(err)
	req.Empty(page)
	req.Nil(cursor)
}

func Test_Chats_Are_Isolated(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	at := time.Now().UTC()

	// Given a chat id that would prefix another one without escaping
	req.NoError(repository.CreateMessage(ctx, chat.PostMessageCommand{Chat: "c1", Sender: "a", Content: "mine", CreatedAt: at}))
	req.NoError(repository.CreateMessage(ctx, chat.PostMessageCommand{Chat: "c1:0", Sender: "a", Content: "other", CreatedAt: at}))

	messages, _, err := repository.GetMessages(chat.GetMessageCommand{Chat: "c1"})

	req.NoError(err)
	req.Equal([]string{"mine"}, contents(messages))
}

func Test_Create_Message_Honors_Canceled_Context(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), slog.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repository.CreateMessage(ctx, chat.PostMessageCommand{Chat: "c1", Sender: "a", Content: "x"})

	req.ErrorIs(err, context.Canceled)
}

func Test_Write_And_Read_Commands_Share_Chat_Prefix(t *testing.T) {
	req := require.New(t)
	post := chat.PostMessageCommand{Chat: "room/1:a"}
	get := chat.GetMessageCommand{Chat: "room/1:a"}

	req.Equal("msg:room%2F1%3Aa:", messagePrefix(post))
	req.Equal(messagePrefix(post), messagePrefix(get))
}
