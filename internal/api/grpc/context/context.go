package context

import (
	"context"

	"github.com/dtroode/telcoassist-server/internal/model"
)

type claimsKey struct{}

// Manager carries verified channel claims through a request context. The
// claims live in a private context key, so request metadata cannot forge
// them.
type Manager struct{}

var _ model.ContextManager = (*Manager)(nil)

// NewManager creates a new gRPC context manager instance.
func NewManager() *Manager {
	return &Manager{}
}

// SetClaimsToContext returns a copy of ctx carrying claims.
func (m *Manager) SetClaimsToContext(ctx context.Context, claims model.ChannelClaims) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

// GetClaimsFromContext returns the claims set by SetClaimsToContext.
func (m *Manager) GetClaimsFromContext(ctx context.Context) (model.ChannelClaims, bool) {
	claims, ok := ctx.Value(claimsKey{}).(model.ChannelClaims)
	if !ok || claims.PhoneNumber == "" {
		return model.ChannelClaims{}, false
	}
	return claims, true
}
