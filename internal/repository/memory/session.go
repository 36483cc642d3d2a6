// Package memory holds in-process store implementations used by tests and
// local runs without Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dtroode/telcoassist-server/internal/model"
)

var _ model.SessionStore = (*SessionStore)(nil)

// SessionStore keeps every turn of every session in memory.
type SessionStore struct {
	mu    sync.Mutex
	turns map[string][]model.Turn
	now   func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		turns: make(map[string][]model.Turn),
		now:   time.Now,
	}
}

// WithClock replaces the clock used for expiry checks.
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) GetLatest(_ context.Context, sessionID string) (model.Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, ok := s.latest(sessionID)
	if !ok || turn.Expired(s.now()) {
		return model.Turn{}, model.ErrNotFound
	}
	return copyTurn(*turn), nil
}

func (s *SessionStore) PutNewTurn(_ context.Context, turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := 0
	if latest, ok := s.latest(turn.SessionID); ok {
		next = latest.TurnNumber + 1
	}
	if turn.TurnNumber != next {
		return model.ErrConflict
	}

	turn = copyTurn(turn)
	turn.Version = 1
	s.turns[turn.SessionID] = append(s.turns[turn.SessionID], turn)
	return nil
}

func (s *SessionStore) SaveTurn(_ context.Context, turn model.Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.find(turn.SessionID, turn.TurnNumber)
	if !ok {
		return model.ErrNotFound
	}
	s.overwrite(stored, turn)
	return nil
}

func (s *SessionStore) SaveTurnIfVersion(_ context.Context, turn model.Turn, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.find(turn.SessionID, turn.TurnNumber)
	if !ok || stored.Version != expectedVersion {
		return model.ErrConflict
	}
	s.overwrite(stored, turn)
	return nil
}

func (s *SessionStore) IncrementPinAttempts(_ context.Context, sessionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, ok := s.latest(sessionID)
	if !ok || turn.Expired(s.now()) {
		return 0, model.ErrNotFound
	}
	turn.PinAttempts++
	turn.Version++
	turn.UpdatedAt = s.now()
	return turn.PinAttempts, nil
}

func (s *SessionStore) ResetPinAttempts(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, ok := s.latest(sessionID)
	if !ok || turn.Expired(s.now()) {
		return model.ErrNotFound
	}
	turn.PinAttempts = 0
	turn.Version++
	turn.UpdatedAt = s.now()
	return nil
}

func (s *SessionStore) GetCompletion(_ context.Context, sessionID, key string) (model.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, ok := s.latest(sessionID)
	if !ok || turn.Expired(s.now()) {
		return model.ActionResult{}, model.ErrNotFound
	}
	result, ok := turn.CompletedActions[key]
	if !ok {
		return model.ActionResult{}, model.ErrNotFound
	}
	return result, nil
}

func (s *SessionStore) RecordCompletion(_ context.Context, sessionID, key string, result model.ActionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	turn, ok := s.latest(sessionID)
	if !ok {
		return model.ErrNotFound
	}
	if _, exists := turn.CompletedActions[key]; exists {
		return model.ErrConflict
	}
	if turn.CompletedActions == nil {
		turn.CompletedActions = make(map[string]model.ActionResult)
	}
	turn.CompletedActions[key] = result
	turn.Version++
	turn.UpdatedAt = s.now()
	return nil
}

// Turns returns a copy of every stored turn of a session in order.
func (s *SessionStore) Turns(sessionID string) []model.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Turn, 0, len(s.turns[sessionID]))
	for _, t := range s.turns[sessionID] {
		out = append(out, copyTurn(t))
	}
	return out
}

func (s *SessionStore) latest(sessionID string) (*model.Turn, bool) {
	turns := s.turns[sessionID]
	if len(turns) == 0 {
		return nil, false
	}
	return &turns[len(turns)-1], true
}

func (s *SessionStore) find(sessionID string, number int) (*model.Turn, bool) {
	turns := s.turns[sessionID]
	for i := range turns {
		if turns[i].TurnNumber == number {
			return &turns[i], true
		}
	}
	return nil, false
}

func (s *SessionStore) overwrite(stored *model.Turn, turn model.Turn) {
	version := stored.Version
	*stored = copyTurn(turn)
	stored.Version = version + 1
}

func copyTurn(t model.Turn) model.Turn {
	if t.CompletedActions != nil {
		actions := make(map[string]model.ActionResult, len(t.CompletedActions))
		for k, v := range t.CompletedActions {
			actions[k] = v
		}
		t.CompletedActions = actions
	}
	return t
}
