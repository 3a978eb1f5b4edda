package auth

import (
	"chat-relay/contract"
	"chat-relay/domain/chat"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// IdentityFromContext returns the identity injected by StreamAuthInterceptor.
func IdentityFromContext(ctx context.Context) (chat.Identity, bool) {
	identity, ok := ctx.Value(UserIDKey).(chat.Identity)
	return identity, ok && identity != ""
}

// StreamAuthInterceptor validates the authorization metadata of every incoming stream
// and injects the resolved identity into the stream context.
func StreamAuthInterceptor(resolver contract.IdentityResolver) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, _ *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		md, ok := metadata.FromIncomingContext(ctx)
		if !ok {
			return status.Error(codes.Unauthenticated, "metadata is missing")
		}
		values := md.Get("authorization")
		if len(values) == 0 {
			return status.Error(codes.Unauthenticated, "authorization token is missing")
		}
		identity, err := resolver.CurrentIdentity(ctx, values[0])
		if err != nil {
			return status.Error(codes.Unauthenticated, "invalid or expired token")
		}
		return handler(srv, &identityStream{
			ServerStream: ss,
			ctx:          context.WithValue(ctx, UserIDKey, identity),
		})
	}
}

type identityStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *identityStream) Context() context.Context { return s.ctx }
