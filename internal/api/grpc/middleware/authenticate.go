package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// Authenticate verifies optional channel tokens and injects their claims into context.
type Authenticate struct {
	tokens         model.TokenManager
	contextManager model.ContextManager
	logger         *logger.Logger
}

// NewAuthenticate creates a new Authenticate middleware instance.
func NewAuthenticate(tokens model.TokenManager, contextManager model.ContextManager, logger *logger.Logger) *Authenticate {
	return &Authenticate{tokens: tokens, contextManager: contextManager, logger: logger}
}

// AuthFunc lets requests without a bearer token through unchanged. A token
// that is present must be valid.
func (m *Authenticate) AuthFunc(ctx context.Context) (context.Context, error) {
	tokenString := bearerToken(ctx)
	if tokenString == "" {
		return ctx, nil
	}

	claims, err := m.tokens.ParseChannelToken(tokenString)
	if err != nil {
		m.logger.Debug("Authenticate: invalid channel token", "error", err.Error())
		return nil, status.Error(codes.Unauthenticated, "invalid channel token")
	}

	return m.contextManager.SetClaimsToContext(ctx, claims), nil
}

func bearerToken(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	authHeaders := md.Get("authorization")
	if len(authHeaders) == 0 {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeaders[0], "Bearer "))
}
