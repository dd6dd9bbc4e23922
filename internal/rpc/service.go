package rpc

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "springs.v1.Chat"

// ChatServer is implemented by the daemon.
type ChatServer interface {
	Status(context.Context, *StatusRequest) (*StatusResponse, error)
	Open(context.Context, *OpenRequest) (*OpenResponse, error)
	Peer(context.Context, *PeerRequest) (*PeerInfo, error)
	Send(context.Context, *SendRequest) (*SendResponse, error)
	Resend(context.Context, *ResendRequest) (*SendResponse, error)
	ListMessages(context.Context, *ListMessagesRequest) (*ListMessagesResponse, error)
	ListFailed(context.Context, *ListFailedRequest) (*ListFailedResponse, error)
	ListConversations(context.Context, *ListConversationsRequest) (*ListConversationsResponse, error)
	MarkRead(context.Context, *MarkReadRequest) (*MarkReadResponse, error)
	Typing(context.Context, *TypingRequest) (*Empty, error)
	StartRecording(context.Context, *StartRecordingRequest) (*StartRecordingResponse, error)
	StopRecording(context.Context, *StopRecordingRequest) (*StopRecordingResponse, error)
	WatchEvents(*WatchEventsRequest, EventStream) error
}

// EventStream is the server side of WatchEvents.
type EventStream interface {
	Send(*Event) error
	Context() context.Context
}

// RegisterChatServer attaches srv to s.
func RegisterChatServer(s grpc.ServiceRegistrar, srv ChatServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes springs.v1.Chat.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ChatServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Status", ChatServer.Status),
		unary("Open", ChatServer.Open),
		unary("Peer", ChatServer.Peer),
		unary("Send", ChatServer.Send),
		unary("Resend", ChatServer.Resend),
		unary("ListMessages", ChatServer.ListMessages),
		unary("ListFailed", ChatServer.ListFailed),
		unary("ListConversations", ChatServer.ListConversations),
		unary("MarkRead", ChatServer.MarkRead),
		unary("Typing", ChatServer.Typing),
		unary("StartRecording", ChatServer.StartRecording),
		unary("StopRecording", ChatServer.StopRecording),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "springs/v1/chat",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary[Req, Resp any](name string, call func(ChatServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ChatServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ChatServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ChatServer).WatchEvents(in, &eventServerStream{stream})
}

type eventServerStream struct {
	grpc.ServerStream
}

func (s *eventServerStream) Send(e *Event) error {
	return s.ServerStream.SendMsg(e)
}
