package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// ChatRouter fans chat scoped events out to every live connection of a member list.
type ChatRouter struct {
	log        *slog.Logger
	registry   contract.IRegistry
	presence   contract.IPresence
	persist    contract.IPersistQueue
	censor     contract.Censor
	membership contract.MembershipStore
	metrics    *observability.Metrics
	now        func() time.Time
}

type RouterOption func(*ChatRouter)

// WithCensor rewrites message content before delivery and persistence.
func WithCensor(censor contract.Censor) RouterOption {
	return func(r *ChatRouter) { r.censor = censor }
}

// WithMembershipCheck intersects caller supplied member lists with the stored membership.
func WithMembershipCheck(store contract.MembershipStore) RouterOption {
	return func(r *ChatRouter) { r.membership = store }
}

func WithMetrics(m *observability.Metrics) RouterOption {
	return func(r *ChatRouter) { r.metrics = m }
}

func WithClock(now func() time.Time) RouterOption {
	return func(r *ChatRouter) { r.now = now }
}

func NewChatRouter(log *slog.Logger, registry contract.IRegistry, presence contract.IPresence,
	persist contract.IPersistQueue, opts ...RouterOption) *ChatRouter {
	r := &ChatRouter{
		log:      log,
		registry: registry,
		presence: presence,
		persist:  persist,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RouteMessage delivers the message to every member connection, sender included,
// then hands it to the persistence queue. Persistence never delays nor reverts delivery.
func (r *ChatRouter) RouteMessage(ctx context.Context, chatID chat.ChatID, members chat.Members,
	sender chat.Identity, content string) chat.Message {
	if r.censor != nil {
		content = r.censor.Censor(content)
	}
	message := chat.NewMessage(chatID, sender, content, r.now())
	recipients := r.recipients(ctx, chatID, members)

	r.deliver(event.NewMessageEvent(message), recipients, "")
	r.deliver(event.NewMessageAlertEvent(chatID), recipients, "")

	if r.persist == nil {
		return message
	}
	err := r.persist.Enqueue(chat.PostMessageCommand{
		Chat:      chatID,
		Sender:    sender,
		Content:   content,
		CreatedAt: message.CreatedAt,
	})
	if err != nil {
		r.metrics.StoreFailed()
		r.log.Error("message not queued for persistence",
			"chat_id", chatID, "user_id", sender, "error", stderrors.Join(errors.ErrStore, err))
	}
	return message
}

// RouteTyping relays typing start or stop to members, except the originating connection.
func (r *ChatRouter) RouteTyping(ctx context.Context, kind event.Name, chatID chat.ChatID,
	members chat.Members, origin chat.ConnectionID) {
	r.deliver(event.TypingEvent(kind, chatID), r.recipients(ctx, chatID, members), origin)
}

// RoutePresence sends the current presence snapshot to members.
func (r *ChatRouter) RoutePresence(members chat.Members) {
	snapshot := r.presence.Snapshot()
	r.metrics.OnlineUsers(len(snapshot))
	r.deliver(event.OnlineUsersEvent(snapshot), members.Unique(), "")
}

func (r *ChatRouter) OnJoin(identity chat.Identity, members chat.Members) {
	r.presence.MarkOnline(identity)
	r.RoutePresence(members)
}

func (r *ChatRouter) OnLeave(identity chat.Identity, members chat.Members) {
	r.presence.MarkOffline(identity)
	r.RoutePresence(members)
}

// BroadcastPresence sends the snapshot to every live connection.
// There is no reverse index from identity to chats, so disconnects go global.
func (r *ChatRouter) BroadcastPresence() {
	snapshot := r.presence.Snapshot()
	r.metrics.OnlineUsers(len(snapshot))
	out := event.OnlineUsersEvent(snapshot)
	for _, h := range r.registry.All() {
		r.push(h, out)
	}
}

func (r *ChatRouter) recipients(ctx context.Context, chatID chat.ChatID, members chat.Members) chat.Members {
	members = members.Unique()
	if r.membership == nil || len(members) == 0 {
		return members
	}
	stored, found, err := r.membership.Members(ctx, chatID)
	if err != nil {
		r.log.Warn("membership lookup failed, using caller list", "chat_id", chatID, "error", err)
		return members
	}
	if !found {
		return members
	}
	verified := lo.Intersect(members, stored)
	if dropped := len(members) - len(verified); dropped > 0 {
		r.log.Warn("caller supplied members outside the chat", "chat_id", chatID, "count", dropped)
	}
	return verified
}

func (r *ChatRouter) deliver(out event.Outbound, members chat.Members, skip chat.ConnectionID) {
	for _, member := range members {
		for _, h := range r.registry.HandlesFor(member) {
			if h.ID() == skip {
				continue
			}
			r.push(h, out)
		}
	}
}

func (r *ChatRouter) push(h contract.Handle, out event.Outbound) {
	if err := h.Send(out); err != nil {
		reason := observability.ReasonQueueFull
		if stderrors.Is(err, errors.ErrConnectionClosed) {
			reason = observability.ReasonClosed
		}
		r.metrics.Dropped(reason)
		r.log.Debug("event dropped", "event", out.Event, "connection_id", h.ID(),
			"user_id", h.Identity(), "error", err)
		return
	}
	r.metrics.Delivered(string(out.Event))
}
