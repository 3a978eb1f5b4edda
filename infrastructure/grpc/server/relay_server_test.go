package server_test

import (
	"chat-relay/domain/chat"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/grpc/client"
	"chat-relay/infrastructure/grpc/server"
	"chat-relay/mocks"
	"chat-relay/runtime"
	"context"
	"log/slog"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fixture struct {
	cc       *grpc.ClientConn
	presence *runtime.Presence
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)

	resolver := mocks.NewMockIdentityResolver(gomock.NewController(t))
	resolver.EXPECT().
		CurrentIdentity(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, credential string) (chat.Identity, error) {
			identity := strings.TrimSpace(strings.TrimPrefix(credential, "Bearer"))
			if identity == "" {
				return "", errors.ErrAuth
			}
			return chat.Identity(identity), nil
		}).
		AnyTimes()

	registry := runtime.NewRegistry()
	presence := runtime.NewPresence()
	router := runtime.NewChatRouter(log, registry, presence, nil)
	relay := runtime.NewSignalingRelay(log, registry, runtime.NewCallTracker(log), nil)
	lifecycle := runtime.NewLifecycle(log, runtime.LifecycleConfig{}, resolver, registry, presence, router, relay, nil)

	listener := bufconn.Listen(1 << 20)
	srv := server.NewGrpcServer(log, lifecycle, resolver)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	cc, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	req.NoError(err)
	t.Cleanup(func() { _ = cc.Close() })
	return fixture{cc: cc, presence: presence}
}

func connect(t *testing.T, f fixture, identity string) *client.RelayClient {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	c, err := client.Connect(ctx, f.cc, identity)
	require.NoError(t, err)
	return c
}

// joined waits until the identity's stream is registered on the server.
func joined(t *testing.T, c *client.RelayClient, identity string) {
	t.Helper()
	req := require.New(t)
	req.NoError(c.Send(event.ChatJoined, map[string]any{"userId": identity, "members": []string{identity}}))
	frame, err := c.Recv()
	req.NoError(err)
	req.Equal(event.OnlineUsers, frame.Event)
}

func TestRelayServer_Rejects_Unauthenticated_Stream(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	c := connect(t, f, "")

	_, err := c.Recv()

	req.Equal(codes.Unauthenticated, status.Code(err))
}

func TestRelayServer_Relays_Between_Streams(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := connect(t, f, "A")
	b := connect(t, f, "B")
	joined(t, a, "A")
	joined(t, b, "B")

	// When A invites B
	req.NoError(a.Send(event.SendCall, map[string]string{"to": "B"}))

	// Then B receives the invite from A
	frame, err := b.Recv()
	req.NoError(err)
	req.Equal(event.ReceiveCall, frame.Event)
	req.JSONEq(`{"from":"A"}`, string(frame.Data))
}

func TestRelayServer_Close_Disconnects(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	a := connect(t, f, "A")
	b := connect(t, f, "B")
	joined(t, a, "A")
	joined(t, b, "B")

	// When A half closes its stream
	req.NoError(a.Close())

	// Then B eventually sees A offline
	frame, err := b.Recv()
	req.NoError(err)
	req.Equal(event.OnlineUsers, frame.Event)
	req.JSONEq(`["B"]`, string(frame.Data))
	req.False(f.presence.IsOnline("A"))
}
