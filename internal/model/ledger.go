package model

import (
	"context"
	"time"
)

// ActionResult is the outcome of a side-effecting business action.
type ActionResult struct {
	Success       bool      `json:"success"`
	Action        string    `json:"action"`
	CustomerID    string    `json:"customer_id,omitempty"`
	FeatureStatus string    `json:"voicemail_status,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
	Idempotent    bool      `json:"idempotent"`
	Error         string    `json:"error,omitempty"`
}

// IdempotencyKey returns the composite ledger key for an action in a session.
func IdempotencyKey(sessionID, action string) string {
	return sessionID + ":" + action
}

// LedgerStore records completed actions on the session's latest turn.
type LedgerStore interface {
	// GetCompletion returns the cached result for key, or ErrNotFound.
	GetCompletion(ctx context.Context, sessionID, key string) (ActionResult, error)
	// RecordCompletion stores result under key once. A second call for the
	// same key keeps the first result and returns ErrConflict.
	RecordCompletion(ctx context.Context, sessionID, key string, result ActionResult) error
}
