package repositories

import (
	"chat-relay/domain/chat"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChatRepository_Members(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	repository := NewChatRepository(openDB(t))

	// Given an unknown chat
	members, found, err := repository.Members(ctx, "c1")
	req.NoError(err)
	req.False(found)
	req.Nil(members)

	// When its members are saved with a duplicate
	req.NoError(repository.SaveMembers(ctx, "c1", chat.Members{"alice", "bob", "alice"}))

	// Then they are found, deduplicated
	members, found, err = repository.Members(ctx, "c1")
	req.NoError(err)
	req.True(found)
	req.Equal(chat.Members{"alice", "bob"}, members)

	// When they are replaced
	req.NoError(repository.SaveMembers(ctx, "c1", chat.Members{"clara"}))
	members, _, err = repository.Members(ctx, "c1")
	req.NoError(err)
	req.Equal(chat.Members{"clara"}, members)
}
