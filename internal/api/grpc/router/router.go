package router

import (
	"context"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/selector"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dtroode/telcoassist-server/internal/api/grpc/conversationpb"
	"github.com/dtroode/telcoassist-server/internal/api/grpc/handler"
	"github.com/dtroode/telcoassist-server/internal/api/grpc/middleware"
	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

const healthPrefix = "/grpc.health.v1.Health/"

// Router wires the conversation service and its interceptors into a gRPC server.
type Router struct {
	conversation   handler.ConversationService
	tokens         model.TokenManager
	contextManager model.ContextManager
	logger         *logger.Logger
}

// New creates new gRPC Router instance.
func New(
	conversation handler.ConversationService,
	tokens model.TokenManager,
	contextManager model.ContextManager,
	logger *logger.Logger,
) *Router {
	return &Router{
		conversation:   conversation,
		tokens:         tokens,
		contextManager: contextManager,
		logger:         logger,
	}
}

func authMatch(_ context.Context, c interceptors.CallMeta) bool {
	return !strings.HasPrefix(c.FullMethod(), healthPrefix)
}

// Register builds the gRPC server with recovery, request logging and
// channel token interceptors, and registers the conversation and health
// services on it.
func (r *Router) Register() *grpc.Server {
	logging := middleware.NewLogging(r.logger)
	authenticate := middleware.NewAuthenticate(r.tokens, r.contextManager, r.logger)

	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			logging.HandleGRPC,
			recovery.UnaryServerInterceptor(recovery.WithRecoveryHandler(logging.Recover)),
			selector.UnaryServerInterceptor(
				auth.UnaryServerInterceptor(authenticate.AuthFunc),
				selector.MatchFunc(authMatch),
			),
		),
		grpc.ChainStreamInterceptor(
			recovery.StreamServerInterceptor(recovery.WithRecoveryHandler(logging.Recover)),
		),
	)

	conversationpb.RegisterConversationServer(s, handler.NewConversation(r.conversation, r.logger))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(conversationpb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)

	return s
}
