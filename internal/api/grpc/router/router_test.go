package router

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	grpcctx "github.com/dtroode/telcoassist-server/internal/api/grpc/context"
	"github.com/dtroode/telcoassist-server/internal/api/grpc/conversationpb"
	"github.com/dtroode/telcoassist-server/internal/mocks"
	"github.com/dtroode/telcoassist-server/internal/model"
	"github.com/dtroode/telcoassist-server/internal/testutil"
)

func startServer(t *testing.T, svc *mocks.ConversationService, tokens *mocks.TokenManager) *grpc.ClientConn {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	s := New(svc, tokens, grpcctx.NewManager(), testutil.MakeNoopLogger()).Register()
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func sendMessage(t *testing.T, ctx context.Context, conn *grpc.ClientConn, fields map[string]interface{}) (*structpb.Struct, error) {
	t.Helper()
	in, err := structpb.NewStruct(fields)
	require.NoError(t, err)
	return conversationpb.NewConversationClient(conn).SendMessage(ctx, in)
}

func TestRouter_SendMessage(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	tokens := mocks.NewTokenManager(t)
	conn := startServer(t, svc, tokens)

	svc.On("SendMessage", mock.Anything, mock.MatchedBy(func(r model.Request) bool {
		return r.SessionID == "s-1" && r.Message == "hello"
	})).Return(model.Response{SessionID: "s-1", Message: "Hi there", Intent: "greeting", Language: model.LanguageEN}, nil)

	out, err := sendMessage(t, context.Background(), conn, map[string]interface{}{
		"session_id":   "s-1",
		"phone_number": "+60123456789",
		"message":      "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hi there", out.AsMap()["message"])
	tokens.AssertNotCalled(t, "ParseChannelToken", mock.Anything)
}

func TestRouter_ChannelTokenReachesService(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	tokens := mocks.NewTokenManager(t)
	conn := startServer(t, svc, tokens)

	claims := model.ChannelClaims{PhoneNumber: "+60123456789", Channel: model.ChannelMobile}
	tokens.On("ParseChannelToken", "good").Return(claims, nil)

	var seen model.ChannelClaims
	svc.On("SendMessage", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			seen, _ = grpcctx.NewManager().GetClaimsFromContext(args.Get(0).(context.Context))
		}).
		Return(model.Response{SessionID: "s-2"}, nil)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer good")
	_, err := sendMessage(t, ctx, conn, map[string]interface{}{
		"session_id":   "s-2",
		"phone_number": "+60123456789",
		"message":      "voicemail status",
		"channel":      "mobile",
	})
	require.NoError(t, err)
	assert.Equal(t, claims, seen)
}

func TestRouter_InvalidTokenRejected(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	tokens := mocks.NewTokenManager(t)
	conn := startServer(t, svc, tokens)

	tokens.On("ParseChannelToken", "bad").Return(model.ChannelClaims{}, errors.New("signature is invalid"))

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer bad")
	_, err := sendMessage(t, ctx, conn, map[string]interface{}{"message": "hi"})
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	svc.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything)
}

func TestRouter_PanicBecomesInternal(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	tokens := mocks.NewTokenManager(t)
	conn := startServer(t, svc, tokens)

	svc.On("SendMessage", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("handler bug")
	}).Return(model.Response{}, nil)

	_, err := sendMessage(t, context.Background(), conn, map[string]interface{}{"message": "hi"})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestRouter_HealthSkipsAuth(t *testing.T) {
	t.Parallel()

	svc := mocks.NewConversationService(t)
	tokens := mocks.NewTokenManager(t)
	conn := startServer(t, svc, tokens)

	ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", "Bearer whatever")
	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: conversationpb.ServiceName})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.GetStatus())
	tokens.AssertNotCalled(t, "ParseChannelToken", mock.Anything)
}
