package model

import "context"

// ContextManager carries verified channel claims through a request context.
type ContextManager interface {
	SetClaimsToContext(ctx context.Context, claims ChannelClaims) context.Context
	GetClaimsFromContext(ctx context.Context) (ChannelClaims, bool)
}
