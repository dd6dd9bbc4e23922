package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client is the springsctl/springstui side of the control plane.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	out := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "Status", &StatusRequest{})
}

func (c *Client) Open(ctx context.Context, peerID string) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c, "Open", &OpenRequest{PeerID: peerID})
}

func (c *Client) Peer(ctx context.Context, chatID string) (*PeerInfo, error) {
	return invoke[PeerInfo](ctx, c, "Peer", &PeerRequest{ChatID: chatID})
}

func (c *Client) Send(ctx context.Context, req *SendRequest) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, "Send", req)
}

func (c *Client) Resend(ctx context.Context, chatID, messageID string) (*SendResponse, error) {
	return invoke[SendResponse](ctx, c, "Resend", &ResendRequest{ChatID: chatID, MessageID: messageID})
}

func (c *Client) ListMessages(ctx context.Context, chatID string) (*ListMessagesResponse, error) {
	return invoke[ListMessagesResponse](ctx, c, "ListMessages", &ListMessagesRequest{ChatID: chatID})
}

func (c *Client) ListFailed(ctx context.Context, chatID string) (*ListFailedResponse, error) {
	return invoke[ListFailedResponse](ctx, c, "ListFailed", &ListFailedRequest{ChatID: chatID})
}

func (c *Client) ListConversations(ctx context.Context, limit int) (*ListConversationsResponse, error) {
	return invoke[ListConversationsResponse](ctx, c, "ListConversations", &ListConversationsRequest{Limit: limit})
}

func (c *Client) MarkRead(ctx context.Context, chatID, messageID string) (*MarkReadResponse, error) {
	return invoke[MarkReadResponse](ctx, c, "MarkRead", &MarkReadRequest{ChatID: chatID, MessageID: messageID})
}

func (c *Client) Typing(ctx context.Context, chatID string) error {
	_, err := invoke[Empty](ctx, c, "Typing", &TypingRequest{ChatID: chatID})
	return err
}

func (c *Client) StartRecording(ctx context.Context) (*StartRecordingResponse, error) {
	return invoke[StartRecordingResponse](ctx, c, "StartRecording", &StartRecordingRequest{})
}

func (c *Client) StopRecording(ctx context.Context) (*StopRecordingResponse, error) {
	return invoke[StopRecordingResponse](ctx, c, "StopRecording", &StopRecordingRequest{})
}

// WatchEvents streams daemon events until ctx ends or the stream fails.
// fn runs for every event on the calling goroutine.
func (c *Client) WatchEvents(ctx context.Context, prefix string, fn func(*Event)) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], fullMethod("WatchEvents"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchEventsRequest{Prefix: prefix}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		evt := new(Event)
		if err := stream.RecvMsg(evt); err != nil {
			return err
		}
		fn(evt)
	}
}
