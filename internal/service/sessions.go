package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// Sessions manages turn creation and the control fields of the latest turn
// on top of a SessionStore using optimistic writes.
type Sessions struct {
	store   model.SessionStore
	ttl     time.Duration
	retries int
	now     func() time.Time
	logger  *logger.Logger
}

func NewSessions(store model.SessionStore, ttl time.Duration, retries int, logger *logger.Logger) *Sessions {
	if ttl <= 0 {
		ttl = model.DefaultSessionTTL
	}
	if retries < 0 {
		retries = 0
	}
	return &Sessions{
		store:   store,
		ttl:     ttl,
		retries: retries,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock replaces the clock used for timestamps.
func (s *Sessions) WithClock(now func() time.Time) *Sessions {
	s.now = now
	return s
}

// Latest returns the authoritative turn of a session.
func (s *Sessions) Latest(ctx context.Context, sessionID string) (model.Turn, error) {
	return s.store.GetLatest(ctx, sessionID)
}

// BeginTurn appends the turn for an inbound request. Control fields, the
// attempt counter and the completed-action ledger carry over from the
// previous turn, so a redelivered request replays instead of re-executing.
// A missing, expired or closed session starts over at turn 0, under a
// fresh id when the old one still has stored history.
func (s *Sessions) BeginTurn(ctx context.Context, req model.Request) (model.Turn, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	for attempt := 0; attempt <= s.retries; attempt++ {
		now := s.now()
		turn := model.Turn{
			SessionID:   sessionID,
			CustomerID:  req.CustomerID,
			PhoneNumber: req.PhoneNumber,
			Channel:     req.Channel,
			UserMessage: req.Message,
			State:       model.SessionActive,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(s.ttl),
		}

		latest, err := s.store.GetLatest(ctx, sessionID)
		switch {
		case err == nil && latest.State == model.SessionClosed:
			sessionID = uuid.NewString()
			continue
		case err == nil:
			turn.TurnNumber = latest.TurnNumber + 1
			turn.AwaitingAction = latest.AwaitingAction
			turn.PendingIntent = latest.PendingIntent
			turn.PinAttempts = latest.PinAttempts
			turn.State = latest.State
			turn.CreatedAt = latest.CreatedAt
			turn.CompletedActions = maps.Clone(latest.CompletedActions)
			if turn.CustomerID == "" {
				turn.CustomerID = latest.CustomerID
			}
			if turn.PhoneNumber == "" {
				turn.PhoneNumber = latest.PhoneNumber
			}
		case errors.Is(err, model.ErrNotFound):
		default:
			return model.Turn{}, fmt.Errorf("failed to get latest turn: %w", err)
		}

		err = s.store.PutNewTurn(ctx, turn)
		if err == nil {
			turn.Version = 1
			s.logger.Debug("Sessions: turn started",
				"session_id", turn.SessionID,
				"turn_number", turn.TurnNumber)
			return turn, nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return model.Turn{}, fmt.Errorf("failed to put new turn: %w", err)
		}

		// Turn 0 conflicting with nothing visible means the id only has
		// expired history.
		if turn.TurnNumber == 0 {
			if _, err := s.store.GetLatest(ctx, sessionID); errors.Is(err, model.ErrNotFound) {
				s.logger.Info("Sessions: rotating expired session", "session_id", sessionID)
				sessionID = uuid.NewString()
			}
		}
	}

	return model.Turn{}, fmt.Errorf("failed to begin turn for session %s: %w", sessionID, model.ErrConflict)
}

// UpdateAwaiting sets the awaiting action and pending intent on the latest
// turn and refreshes its expiry, leaving every other field unchanged. A
// concurrent write is detected by version and retried on a fresh read.
func (s *Sessions) UpdateAwaiting(ctx context.Context, sessionID string, awaiting model.AwaitingAction, pendingIntent string) error {
	if awaiting == model.AwaitingPIN && pendingIntent == "" {
		return model.NewValidationError("pending_intent", "required while awaiting a PIN")
	}

	for attempt := 0; attempt <= s.retries; attempt++ {
		turn, err := s.store.GetLatest(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("failed to get latest turn: %w", err)
		}

		expected := turn.Version
		now := s.now()
		turn.AwaitingAction = awaiting
		turn.PendingIntent = pendingIntent
		turn.UpdatedAt = now
		turn.ExpiresAt = now.Add(s.ttl)

		err = s.store.SaveTurnIfVersion(ctx, turn, expected)
		if err == nil {
			return nil
		}
		if !errors.Is(err, model.ErrConflict) {
			return fmt.Errorf("failed to save turn: %w", err)
		}

		s.logger.Debug("Sessions: concurrent turn update, retrying",
			"session_id", sessionID,
			"attempt", attempt+1)
	}

	return fmt.Errorf("failed to update awaiting action: %w", model.ErrConflict)
}
