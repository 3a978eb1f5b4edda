//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Handle is one live connection as seen by the routing core.
// Send must never block the caller.
type Handle interface {
	ID() chat.ConnectionID
	Identity() chat.Identity
	Send(out event.Outbound) error
	Close()
}

type IRegistry interface {
	Register(identity chat.Identity, handle Handle)
	Unregister(id chat.ConnectionID) (owner chat.Identity, remaining int, ok bool)
	HandlesFor(identity chat.Identity) []Handle
	ResolveOne(identity chat.Identity) (Handle, bool)
	All() []Handle
}

type IPresence interface {
	MarkOnline(identity chat.Identity) bool
	MarkOffline(identity chat.Identity) bool
	IsOnline(identity chat.Identity) bool
	Snapshot() []chat.Identity
}

// MessageStore is the durable store collaborator ("create message").
type MessageStore interface {
	CreateMessage(ctx context.Context, cmd chat.PostMessageCommand) error
}

// MembershipStore resolves the persisted members of a chat ("fetch members of chat").
// found is false when the store knows nothing about the chat.
type MembershipStore interface {
	Members(ctx context.Context, chatID chat.ChatID) (members chat.Members, found bool, err error)
}

// IdentityResolver is the authentication collaborator ("current identity").
// It fails with errors.ErrAuth when the credential carries no identity.
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, credential string) (chat.Identity, error)
}

// Censor rewrites message content before fan-out.
type Censor interface {
	Censor(original string) string
}

// IPersistQueue accepts messages for asynchronous persistence.
// Enqueue must return immediately, failing when the queue is saturated.
type IPersistQueue interface {
	Enqueue(cmd chat.PostMessageCommand) error
}
