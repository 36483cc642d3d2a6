// Package conversationpb declares the Conversation gRPC service. Messages
// are google.protobuf.Struct values with the fields documented on
// SendMessage.
package conversationpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName             = "telcoassist.v1.Conversation"
	SendMessageFullMethod   = "/telcoassist.v1.Conversation/SendMessage"
	conversationProtoSource = "telcoassist/v1/conversation.proto"
)

// ConversationServer is the server API for the Conversation service.
type ConversationServer interface {
	// SendMessage accepts {session_id?, phone_number, message, channel?,
	// turn_number?} and answers {session_id, message, intent, confidence,
	// grounded, citations, requires_followup, escalate, language, timestamp,
	// awaiting_action}.
	SendMessage(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

// ConversationServiceDesc is the grpc.ServiceDesc for the Conversation service.
var ConversationServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConversationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "SendMessage",
			Handler:    sendMessageHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: conversationProtoSource,
}

// RegisterConversationServer registers srv on s.
func RegisterConversationServer(s grpc.ServiceRegistrar, srv ConversationServer) {
	s.RegisterService(&ConversationServiceDesc, srv)
}

func sendMessageHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ConversationServer).SendMessage(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: SendMessageFullMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ConversationServer).SendMessage(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ConversationClient is the client API for the Conversation service.
type ConversationClient interface {
	SendMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type conversationClient struct {
	cc grpc.ClientConnInterface
}

func NewConversationClient(cc grpc.ClientConnInterface) ConversationClient {
	return &conversationClient{cc: cc}
}

func (c *conversationClient) SendMessage(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, SendMessageFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
