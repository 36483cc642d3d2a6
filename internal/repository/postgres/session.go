package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dtroode/telcoassist-server/internal/model"
)

var _ model.SessionStore = (*SessionRepository)(nil)

const turnColumns = `session_id, turn_number, customer_id, phone_number, channel, user_message,
	awaiting_action, pending_intent, pin_attempts, session_state, completed_actions, version,
	created_at, updated_at, expires_at`

// latestTurn restricts a statement to the newest turn of session $1.
const latestTurn = `session_id = $1 AND turn_number = (SELECT MAX(turn_number) FROM sessions WHERE session_id = $1)`

type SessionRepository struct {
	db  *Connection
	now func() time.Time
}

func NewSessionRepository(db *Connection) *SessionRepository {
	return &SessionRepository{
		db:  db,
		now: time.Now,
	}
}

func (r *SessionRepository) GetLatest(ctx context.Context, sessionID string) (model.Turn, error) {
	query := `SELECT ` + turnColumns + ` FROM sessions WHERE ` + latestTurn

	turn, err := scanTurn(r.db.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Turn{}, model.ErrNotFound
		}
		return model.Turn{}, fmt.Errorf("failed to get latest turn: %w", err)
	}
	if turn.Expired(r.now()) {
		return model.Turn{}, model.ErrNotFound
	}

	return turn, nil
}

func (r *SessionRepository) PutNewTurn(ctx context.Context, turn model.Turn) error {
	ledger, err := encodeLedger(turn.CompletedActions)
	if err != nil {
		return err
	}

	// The insert only happens when turn_number is exactly latest+1; the
	// primary key rejects a concurrent append of the same number.
	query := `
		INSERT INTO sessions (` + turnColumns + `)
		SELECT $1::text, $2::int, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, $9::int, $10::text,
			$11::jsonb, 1, $12::timestamptz, $13::timestamptz, $14::timestamptz
		WHERE $2::int = COALESCE((SELECT MAX(turn_number) FROM sessions WHERE session_id = $1), -1) + 1
		ON CONFLICT (session_id, turn_number) DO NOTHING`

	cmd, err := r.db.Exec(ctx, query,
		turn.SessionID, turn.TurnNumber, turn.CustomerID, turn.PhoneNumber, string(turn.Channel), turn.UserMessage,
		nullable(string(turn.AwaitingAction)), nullable(turn.PendingIntent), turn.PinAttempts, string(turn.State), ledger,
		turn.CreatedAt, turn.UpdatedAt, turn.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert turn: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrConflict
	}

	return nil
}

func (r *SessionRepository) SaveTurn(ctx context.Context, turn model.Turn) error {
	query := `
		UPDATE sessions SET customer_id = $3, phone_number = $4, channel = $5, user_message = $6,
			awaiting_action = $7, pending_intent = $8, pin_attempts = $9, session_state = $10,
			completed_actions = $11, version = version + 1, updated_at = $12, expires_at = $13
		WHERE session_id = $1 AND turn_number = $2`

	ledger, err := encodeLedger(turn.CompletedActions)
	if err != nil {
		return err
	}

	cmd, err := r.db.Exec(ctx, query,
		turn.SessionID, turn.TurnNumber, turn.CustomerID, turn.PhoneNumber, string(turn.Channel), turn.UserMessage,
		nullable(string(turn.AwaitingAction)), nullable(turn.PendingIntent), turn.PinAttempts, string(turn.State), ledger,
		turn.UpdatedAt, turn.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *SessionRepository) SaveTurnIfVersion(ctx context.Context, turn model.Turn, expectedVersion int64) error {
	query := `
		UPDATE sessions SET customer_id = $3, phone_number = $4, channel = $5, user_message = $6,
			awaiting_action = $7, pending_intent = $8, pin_attempts = $9, session_state = $10,
			completed_actions = $11, version = version + 1, updated_at = $12, expires_at = $13
		WHERE session_id = $1 AND turn_number = $2 AND version = $14`

	ledger, err := encodeLedger(turn.CompletedActions)
	if err != nil {
		return err
	}

	cmd, err := r.db.Exec(ctx, query,
		turn.SessionID, turn.TurnNumber, turn.CustomerID, turn.PhoneNumber, string(turn.Channel), turn.UserMessage,
		nullable(string(turn.AwaitingAction)), nullable(turn.PendingIntent), turn.PinAttempts, string(turn.State), ledger,
		turn.UpdatedAt, turn.ExpiresAt, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("failed to save turn: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrConflict
	}

	return nil
}

func (r *SessionRepository) IncrementPinAttempts(ctx context.Context, sessionID string) (int, error) {
	query := `
		UPDATE sessions SET pin_attempts = pin_attempts + 1, version = version + 1, updated_at = NOW()
		WHERE ` + latestTurn + ` AND expires_at > $2
		RETURNING pin_attempts`

	var attempts int
	err := r.db.QueryRow(ctx, query, sessionID, r.now()).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.ErrNotFound
		}
		return 0, fmt.Errorf("failed to increment pin attempts: %w", err)
	}

	return attempts, nil
}

func (r *SessionRepository) ResetPinAttempts(ctx context.Context, sessionID string) error {
	query := `
		UPDATE sessions SET pin_attempts = 0, version = version + 1, updated_at = NOW()
		WHERE ` + latestTurn + ` AND expires_at > $2`

	cmd, err := r.db.Exec(ctx, query, sessionID, r.now())
	if err != nil {
		return fmt.Errorf("failed to reset pin attempts: %w", err)
	}
	if cmd.RowsAffected() == 0 {
		return model.ErrNotFound
	}

	return nil
}

func (r *SessionRepository) GetCompletion(ctx context.Context, sessionID, key string) (model.ActionResult, error) {
	query := `SELECT completed_actions -> $2::text FROM sessions WHERE ` + latestTurn + ` AND expires_at > $3`

	var raw []byte
	err := r.db.QueryRow(ctx, query, sessionID, key, r.now()).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ActionResult{}, model.ErrNotFound
		}
		return model.ActionResult{}, fmt.Errorf("failed to get completion: %w", err)
	}
	if raw == nil {
		return model.ActionResult{}, model.ErrNotFound
	}

	var result model.ActionResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return model.ActionResult{}, fmt.Errorf("failed to decode completion: %w", err)
	}

	return result, nil
}

func (r *SessionRepository) RecordCompletion(ctx context.Context, sessionID, key string, result model.ActionResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}

	query := `
		UPDATE sessions SET completed_actions = completed_actions || jsonb_build_object($2::text, $3::jsonb),
			version = version + 1, updated_at = NOW()
		WHERE ` + latestTurn + ` AND NOT (completed_actions ? $2::text)`

	cmd, err := r.db.Exec(ctx, query, sessionID, key, raw)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	if cmd.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	err = r.db.QueryRow(ctx, `SELECT completed_actions ? $2::text FROM sessions WHERE `+latestTurn, sessionID, key).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("failed to check completion: %w", err)
	}
	if exists {
		return model.ErrConflict
	}

	return fmt.Errorf("failed to record completion for key %s", key)
}

func scanTurn(row pgx.Row) (model.Turn, error) {
	var (
		turn              model.Turn
		channel, state    string
		awaiting, pending *string
		ledger            []byte
	)

	err := row.Scan(
		&turn.SessionID, &turn.TurnNumber, &turn.CustomerID, &turn.PhoneNumber, &channel, &turn.UserMessage,
		&awaiting, &pending, &turn.PinAttempts, &state, &ledger, &turn.Version,
		&turn.CreatedAt, &turn.UpdatedAt, &turn.ExpiresAt,
	)
	if err != nil {
		return model.Turn{}, err
	}

	turn.Channel = model.Channel(channel)
	turn.State = model.SessionState(state)
	if awaiting != nil {
		turn.AwaitingAction = model.AwaitingAction(*awaiting)
	}
	if pending != nil {
		turn.PendingIntent = *pending
	}
	if len(ledger) > 0 {
		if err := json.Unmarshal(ledger, &turn.CompletedActions); err != nil {
			return model.Turn{}, fmt.Errorf("failed to decode completed actions: %w", err)
		}
	}

	return turn, nil
}

func encodeLedger(actions map[string]model.ActionResult) ([]byte, error) {
	if actions == nil {
		return []byte("{}"), nil
	}
	raw, err := json.Marshal(actions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completed actions: %w", err)
	}
	return raw, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
