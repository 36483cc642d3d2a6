package model

import (
	"context"
	"time"
)

// DefaultSessionTTL is how long a turn stays authoritative after its last update.
const DefaultSessionTTL = 24 * time.Hour

// Channel identifies the inbound channel a message arrived on.
type Channel string

const (
	ChannelWeb      Channel = "web"
	ChannelMobile   Channel = "mobile"
	ChannelWhatsApp Channel = "whatsapp"
)

// Valid reports whether c is one of the known channels.
func (c Channel) Valid() bool {
	switch c {
	case ChannelWeb, ChannelMobile, ChannelWhatsApp:
		return true
	}
	return false
}

// PreAuthenticated reports whether the channel authenticates the subscriber
// before the message reaches the orchestrator.
func (c Channel) PreAuthenticated() bool {
	return c == ChannelMobile
}

// AwaitingAction is the input the session is waiting for on the next turn.
type AwaitingAction string

const (
	AwaitingNone        AwaitingAction = ""
	AwaitingPIN         AwaitingAction = "pin"
	AwaitingPhoneNumber AwaitingAction = "phone_number"
)

// SessionState is the lifecycle state of a conversation.
type SessionState string

const (
	SessionActive SessionState = "active"
	SessionClosed SessionState = "closed"
)

// Turn is one step of a session. Only the turn with the highest TurnNumber
// is authoritative for control flow.
type Turn struct {
	SessionID      string
	TurnNumber     int
	CustomerID     string
	PhoneNumber    string
	Channel        Channel
	UserMessage    string
	AwaitingAction AwaitingAction
	PendingIntent  string
	PinAttempts    int
	State          SessionState
	// CompletedActions maps idempotency keys to the cached action result.
	CompletedActions map[string]ActionResult
	// Version is bumped on every write and guards conditional updates.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
	ExpiresAt time.Time
}

// Expired reports whether the turn outlived its time-to-live at now.
func (t Turn) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// SessionStore persists session turns.
type SessionStore interface {
	// GetLatest returns the latest non-expired turn or ErrNotFound.
	GetLatest(ctx context.Context, sessionID string) (Turn, error)
	// PutNewTurn appends a turn. TurnNumber must be latest+1 (or 0 for a new
	// session), otherwise ErrConflict is returned.
	PutNewTurn(ctx context.Context, turn Turn) error
	// SaveTurn overwrites the stored turn unconditionally and returns
	// ErrNotFound when it does not exist. Two read-modify-write cycles racing
	// through it lose one update, so the service layer writes with
	// SaveTurnIfVersion; SaveTurn stays for seeding and for tests that
	// reproduce that race.
	SaveTurn(ctx context.Context, turn Turn) error
	// SaveTurnIfVersion overwrites the stored turn only when it still has
	// expectedVersion, otherwise ErrConflict is returned.
	SaveTurnIfVersion(ctx context.Context, turn Turn, expectedVersion int64) error
	// IncrementPinAttempts atomically increments the latest turn's attempt
	// counter and returns the new value.
	IncrementPinAttempts(ctx context.Context, sessionID string) (int, error)
	// ResetPinAttempts zeroes the latest turn's attempt counter.
	ResetPinAttempts(ctx context.Context, sessionID string) error
	LedgerStore
}
