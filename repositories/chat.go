package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"
	stderrors "errors"

	"github.com/dgraph-io/badger/v4"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

var _ contract.MembershipStore = (*ChatRepository)(nil)

// ChatRepository keeps the authoritative member list of each chat.
type ChatRepository struct {
	db *badger.DB
}

func NewChatRepository(db *badger.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// SaveMembers replaces the stored membership of chatID.
func (c *ChatRepository) SaveMembers(ctx context.Context, chatID chat.ChatID, members chat.Members) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	values := make([]any, 0, len(members))
	for _, m := range members.Unique() {
		values = append(values, m.String())
	}
	list, err := structpb.NewList(values)
	if err != nil {
		return err
	}
	data, err := proto.Marshal(list)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(membersKey(chatID), data)
	})
}

// Members returns the stored membership; found is false for an unknown chat.
func (c *ChatRepository) Members(ctx context.Context, chatID chat.ChatID) (chat.Members, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	var list structpb.ListValue
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(membersKey(chatID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return proto.Unmarshal(val, &list)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	members := make(chat.Members, 0, len(list.GetValues()))
	for _, v := range list.GetValues() {
		members = append(members, chat.Identity(v.GetStringValue()))
	}
	return members, true, nil
}

func membersKey(chatID chat.ChatID) []byte {
	return []byte("chat:" + chatID.String() + ":members")
}
