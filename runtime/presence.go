package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"slices"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IPresence = (*Presence)(nil)

// Presence is the set of identities considered online.
// It changes only on explicit join, leave and disconnect, never on connection count.
type Presence struct {
	mu     sync.RWMutex
	online map[chat.Identity]struct{}
}

func NewPresence() *Presence {
	return &Presence{online: make(map[chat.Identity]struct{})}
}

// MarkOnline reports whether the set changed.
func (p *Presence) MarkOnline(identity chat.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.online[identity]; ok {
		return false
	}
	p.online[identity] = struct{}{}
	return true
}

// MarkOffline reports whether the set changed.
func (p *Presence) MarkOffline(identity chat.Identity) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.online[identity]; !ok {
		return false
	}
	delete(p.online, identity)
	return true
}

func (p *Presence) IsOnline(identity chat.Identity) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[identity]
	return ok
}

// Snapshot returns online identities sorted ascending.
func (p *Presence) Snapshot() []chat.Identity {
	p.mu.RLock()
	online := lo.Keys(p.online)
	p.mu.RUnlock()
	slices.Sort(online)
	return online
}
