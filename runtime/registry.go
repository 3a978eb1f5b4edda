package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"sort"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IRegistry = (*Registry)(nil)

type registration struct {
	handle contract.Handle
	seq    uint64
}

// Registry maps identities to their live connections.
// A connection belongs to at most one identity; an identity owns zero or more connections.
type Registry struct {
	mu         sync.RWMutex
	seq        uint64
	byIdentity map[chat.Identity]map[chat.ConnectionID]registration
	owners     map[chat.ConnectionID]chat.Identity
}

func NewRegistry() *Registry {
	return &Registry{
		byIdentity: make(map[chat.Identity]map[chat.ConnectionID]registration),
		owners:     make(map[chat.ConnectionID]chat.Identity),
	}
}

// Register binds handle to identity. Registering the same binding twice is a no-op.
// A handle previously bound to another identity is moved.
func (r *Registry) Register(identity chat.Identity, handle contract.Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := handle.ID()
	if owner, ok := r.owners[id]; ok {
		if owner == identity {
			return
		}
		r.removeLocked(owner, id)
	}

	r.seq++
	handles, ok := r.byIdentity[identity]
	if !ok {
		handles = make(map[chat.ConnectionID]registration)
		r.byIdentity[identity] = handles
	}
	handles[id] = registration{handle: handle, seq: r.seq}
	r.owners[id] = identity
}

// Unregister removes the connection from whichever identity owns it.
// It reports the owner and how many connections the owner still has.
func (r *Registry) Unregister(id chat.ConnectionID) (chat.Identity, int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, ok := r.owners[id]
	if !ok {
		return "", 0, false
	}
	remaining := r.removeLocked(owner, id)
	return owner, remaining, true
}

func (r *Registry) removeLocked(owner chat.Identity, id chat.ConnectionID) int {
	delete(r.owners, id)
	handles := r.byIdentity[owner]
	delete(handles, id)
	if len(handles) == 0 {
		delete(r.byIdentity, owner)
		return 0
	}
	return len(handles)
}

// HandlesFor returns the identity's connections in registration order.
// An unknown identity yields an empty slice: absence means offline.
func (r *Registry) HandlesFor(identity chat.Identity) []contract.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedHandles(r.byIdentity[identity])
}

// ResolveOne returns the most recently registered connection of identity.
func (r *Registry) ResolveOne(identity chat.Identity) (contract.Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var latest registration
	for _, reg := range r.byIdentity[identity] {
		if reg.seq > latest.seq {
			latest = reg
		}
	}
	return latest.handle, latest.handle != nil
}

// All returns every registered connection.
func (r *Registry) All() []contract.Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var all []registration
	for _, handles := range r.byIdentity {
		all = append(all, lo.Values(handles)...)
	}
	return toHandles(all)
}

func sortedHandles(handles map[chat.ConnectionID]registration) []contract.Handle {
	return toHandles(lo.Values(handles))
}

func toHandles(regs []registration) []contract.Handle {
	sort.Slice(regs, func(i, j int) bool { return regs[i].seq < regs[j].seq })
	return lo.Map(regs, func(reg registration, _ int) contract.Handle {
		return reg.handle
	})
}
