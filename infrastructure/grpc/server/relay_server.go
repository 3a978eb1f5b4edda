package server

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/runtime"
	stderrors "errors"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	ServiceName   = "relay.v1.Relay"
	ConnectStream = "Connect"
	ConnectMethod = "/" + ServiceName + "/" + ConnectStream
)

// RelayService is the server side of the Connect bidirectional stream.
type RelayService interface {
	Connect(stream grpc.ServerStream) error
}

// RelayServiceDesc declares the Connect stream; frames are event.Frame values in both directions.
var RelayServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RelayService)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    ConnectStream,
		Handler:       connectHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RelayService).Connect(stream)
}

type RelayServer struct {
	log       *slog.Logger
	lifecycle *runtime.Lifecycle
}

func NewRelayServer(log *slog.Logger, lifecycle *runtime.Lifecycle) *RelayServer {
	return &RelayServer{log: log, lifecycle: lifecycle}
}

// NewGrpcServer builds a gRPC server exposing the relay behind the stream auth interceptor.
func NewGrpcServer(log *slog.Logger, lifecycle *runtime.Lifecycle, resolver contract.IdentityResolver,
	opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts, grpc.ChainStreamInterceptor(auth.StreamAuthInterceptor(resolver)))
	srv := grpc.NewServer(opts...)
	srv.RegisterService(&RelayServiceDesc, NewRelayServer(log, lifecycle))
	return srv
}

// Connect decouples reading from writing with two goroutines and returns
// as soon as either side stops. The connection is torn down on return.
func (s *RelayServer) Connect(stream grpc.ServerStream) error {
	identity, ok := auth.IdentityFromContext(stream.Context())
	if !ok {
		return status.Error(codes.Unauthenticated, "no authenticated identity")
	}
	conn := s.lifecycle.Register(identity)
	defer s.lifecycle.Disconnect(conn)

	errChan := make(chan error, 2)

	go func() {
		for {
			var frame event.Frame
			if err := stream.RecvMsg(&frame); err != nil {
				errChan <- err
				return
			}
			_ = s.lifecycle.Handle(stream.Context(), conn, frame)
		}
	}()

	go func() {
		for {
			select {
			case <-conn.Done():
				errChan <- nil
				return
			case out := <-conn.Outbox():
				frame, err := out.Frame()
				if err != nil {
					s.log.Error("outbound event not encodable", "event", out.Event, "error", err)
					continue
				}
				if err := stream.SendMsg(&frame); err != nil {
					errChan <- err
					return
				}
			}
		}
	}()

	err := <-errChan
	if err == nil || stderrors.Is(err, io.EOF) {
		return nil
	}
	s.log.Debug("relay stream ended", "user_id", identity, "connection_id", conn.ID(), "error", err)
	return err
}
