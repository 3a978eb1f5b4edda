package internal

import (
	"chat-relay/domain/chat"
	"chat-relay/observability"
	"chat-relay/repositories"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestAdminServer_Probes_And_Metrics(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)
	metrics.ConnectionOpened()
	admin := NewAdminServer(slog.Default(), reg)
	h := admin.Handler()

	rec := get(t, h, "/healthz")
	req.Equal(http.StatusOK, rec.Code)
	req.Equal("ok", rec.Body.String())

	// Given listeners not started yet
	rec = get(t, h, "/readyz")
	req.Equal(http.StatusServiceUnavailable, rec.Code)
	req.Equal("not_ready", rec.Body.String())

	// When they are
	admin.SetReady(true)
	rec = get(t, h, "/readyz")
	req.Equal(http.StatusOK, rec.Code)
	req.Equal("ready", rec.Body.String())

	rec = get(t, h, "/metrics")
	req.Equal(http.StatusOK, rec.Code)
	req.Contains(rec.Body.String(), "relay_connections_active 1")

	// Optional endpoints are absent
	req.Equal(http.StatusNotFound, get(t, h, "/chats/c1/messages").Code)
}

func TestAdminServer_Chat_Administration(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()

	chats := repositories.NewChatRepository(db)
	messages := repositories.NewMessageRepository(db, slog.Default(), nil)
	h := NewAdminServer(slog.Default(), prometheus.NewRegistry(),
		WithMembership(chats), WithHistory(messages), WithInspector(db)).Handler()

	// When members are registered with the object form
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/chats/c1/members",
		strings.NewReader(`{"members":[{"_id":"A"},"B"]}`)))
	req.Equal(http.StatusNoContent, rec.Code)

	// Then the membership store knows them
	members, found, err := chats.Members(context.Background(), "c1")
	req.NoError(err)
	req.True(found)
	req.Equal(chat.Members{"A", "B"}, members)

	// Given a persisted message
	at := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
	req.NoError(messages.CreateMessage(context.Background(),
		chat.PostMessageCommand{Chat: "c1", Sender: "A", Content: "hi", CreatedAt: at}))

	// Then history returns it
	rec = get(t, h, "/chats/c1/messages")
	req.Equal(http.StatusOK, rec.Code)
	var page historyPage
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &page))
	req.Len(page.Messages, 1)
	req.Equal("hi", page.Messages[0].Content)
	req.Equal("2025-03-14T09:26:53.589Z", page.Messages[0].CreatedAt)
	req.NotNil(page.Cursor)

	// And the inspector lists its key
	rec = get(t, h, "/debug/keys?prefix=msg:")
	req.Equal(http.StatusOK, rec.Code)
	var rows []InspectRow
	req.NoError(json.Unmarshal(rec.Body.Bytes(), &rows))
	req.Len(rows, 1)
	req.Equal("msg", rows[0].Namespace)
	req.Equal(page.Messages[0].ID, rows[0].EntityID)
	req.Equal("2025-03-14T09:26:53.589Z", rows[0].Timestamp)
}

func TestAdminServer_Rejects_Bad_Members_Body(t *testing.T) {
	req := require.New(t)
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	req.NoError(err)
	defer db.Close()
	h := NewAdminServer(slog.Default(), prometheus.NewRegistry(),
		WithMembership(repositories.NewChatRepository(db))).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/chats/c1/members",
		strings.NewReader(`{"members":[{"_id":""}]}`)))

	req.Equal(http.StatusBadRequest, rec.Code)
}

func TestMapKey(t *testing.T) {
	req := require.New(t)

	row := MapKey("chat:c1:members", 12)

	req.Equal("chat", row.Namespace)
	req.Empty(row.Timestamp)
	req.Equal(12, row.Size)
}
