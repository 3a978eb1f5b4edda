package client

import (
	"chat-relay/domain/event"
	"chat-relay/infrastructure/grpc/server"
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// RelayClient speaks the Connect stream from the client side.
type RelayClient struct {
	stream grpc.ClientStream
}

// Connect opens the stream, authenticating with token.
func Connect(ctx context.Context, cc grpc.ClientConnInterface, token string) (*RelayClient, error) {
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
	stream, err := cc.NewStream(ctx, &server.RelayServiceDesc.Streams[0], server.ConnectMethod,
		grpc.CallContentSubtype(server.CodecName))
	if err != nil {
		return nil, err
	}
	return &RelayClient{stream: stream}, nil
}

// Send emits one event; data is marshalled as the event payload.
func (c *RelayClient) Send(name event.Name, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.stream.SendMsg(&event.Frame{Event: name, Data: raw})
}

// Recv blocks until the next event arrives.
func (c *RelayClient) Recv() (event.Frame, error) {
	var frame event.Frame
	err := c.stream.RecvMsg(&frame)
	return frame, err
}

// Close half-closes the stream; the server then releases the connection.
func (c *RelayClient) Close() error {
	return c.stream.CloseSend()
}
