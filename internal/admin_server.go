package internal

import (
	"chat-relay/domain/chat"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MembershipWriter registers the authoritative members of a chat.
type MembershipWriter interface {
	SaveMembers(ctx context.Context, chatID chat.ChatID, members chat.Members) error
}

// HistoryReader pages through persisted messages, newest first.
type HistoryReader interface {
	GetMessages(cmd chat.GetMessageCommand) ([]chat.Message, *string, error)
}

// AdminServer exposes metrics, probes, chat administration and a key inspector.
type AdminServer struct {
	log      *slog.Logger
	gatherer prometheus.Gatherer
	members  MembershipWriter
	history  HistoryReader
	db       *badger.DB
	ready    atomic.Bool
}

type AdminOption func(*AdminServer)

func WithMembership(w MembershipWriter) AdminOption {
	return func(s *AdminServer) { s.members = w }
}

func WithHistory(r HistoryReader) AdminOption {
	return func(s *AdminServer) { s.history = r }
}

// WithInspector enables GET /debug/keys on the given database.
func WithInspector(db *badger.DB) AdminOption {
	return func(s *AdminServer) { s.db = db }
}

func NewAdminServer(log *slog.Logger, gatherer prometheus.Gatherer, opts ...AdminOption) *AdminServer {
	s := &AdminServer{log: log, gatherer: gatherer}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetReady flips /readyz between ready and not_ready.
func (s *AdminServer) SetReady(ready bool) { s.ready.Store(ready) }

func (s *AdminServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not_ready"))
	})
	if s.members != nil {
		mux.HandleFunc("PUT /chats/{chatId}/members", s.saveMembers)
	}
	if s.history != nil {
		mux.HandleFunc("GET /chats/{chatId}/messages", s.getMessages)
	}
	if s.db != nil {
		mux.HandleFunc("GET /debug/keys", s.inspectKeys)
	}
	return mux
}

// NewHTTPServer wraps the admin handler with the usual timeouts.
func (s *AdminServer) NewHTTPServer(address string) *http.Server {
	return &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func (s *AdminServer) saveMembers(w http.ResponseWriter, r *http.Request) {
	chatID := chat.ChatID(r.PathValue("chatId"))
	var body struct {
		Members chat.Members `json:"members"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.members.SaveMembers(r.Context(), chatID, body.Members); err != nil {
		s.log.Error("members not saved", "chat_id", chatID, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type historyItem struct {
	ID        string        `json:"id"`
	Content   string        `json:"content"`
	Sender    chat.Identity `json:"sender"`
	Chat      chat.ChatID   `json:"chat"`
	CreatedAt string        `json:"createdAt"`
}

type historyPage struct {
	Messages []historyItem `json:"messages"`
	Cursor   *string       `json:"cursor,omitempty"`
}

func (s *AdminServer) getMessages(w http.ResponseWriter, r *http.Request) {
	cmd := chat.GetMessageCommand{Chat: chat.ChatID(r.PathValue("chatId"))}
	if c := r.URL.Query().Get("cursor"); c != "" {
		cmd.Cursor = &c
	}
	messages, cursor, err := s.history.GetMessages(cmd)
	if err != nil {
		s.log.Error("history not readable", "chat_id", cmd.Chat, "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	page := historyPage{Messages: make([]historyItem, 0, len(messages)), Cursor: cursor}
	for _, m := range messages {
		page.Messages = append(page.Messages, historyItem{
			ID:        m.ID.String(),
			Content:   m.Content,
			Sender:    m.Sender,
			Chat:      m.Chat,
			CreatedAt: m.CreatedAt.Format(chat.CreatedAtLayout),
		})
	}
	writeJSON(w, page)
}

type InspectRow struct {
	Key       string `json:"key"`
	Namespace string `json:"namespace"`
	Timestamp string `json:"timestamp,omitempty"`
	EntityID  string `json:"entityId,omitempty"`
	Size      int    `json:"size"`
}

const maxInspectedKeys = 500

// inspectKeys lists keys under ?prefix= (default "msg:") without their values.
func (s *AdminServer) inspectKeys(w http.ResponseWriter, r *http.Request) {
	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		prefix = "msg:"
	}
	rows := make([]InspectRow, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)) && len(rows) < maxInspectedKeys; it.Next() {
			item := it.Item()
			rows = append(rows, MapKey(string(item.Key()), int(item.ValueSize())))
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, rows)
}

// MapKey splits "ns:entity:timestamp:id" style keys for display.
func MapKey(key string, size int) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{Key: key, Namespace: parts[0], Size: size}
	if len(parts) >= 4 {
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format(time.RFC3339Nano)
		}
		row.EntityID = parts[3]
	}
	return row
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
