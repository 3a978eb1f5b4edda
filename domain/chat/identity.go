// Package chat contains the core concepts routed by the relay:
// identities, connection ids, chats and their messages.
package chat

// Identity is the durable reference of an authenticated user.
// It is supplied by the authentication layer and never minted here.
type Identity string

func (i Identity) String() string { return string(i) }

// ConnectionID identifies one live transport connection.
type ConnectionID string

func (c ConnectionID) String() string { return string(c) }

// ChatID identifies a chat room. Its members are owned by the store.
type ChatID string

func (c ChatID) String() string { return string(c) }
