package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// Voicemail feature states reported in action results.
const (
	FeatureActive   = "active"
	FeatureInactive = "inactive"
)

// Operation performs a side effect against the system of record.
type Operation func(ctx context.Context) (model.ActionResult, error)

// Executor runs side-effecting actions at most once per session and action
// name, caching the first successful result on the session's latest turn.
type Executor struct {
	ledger   model.LedgerStore
	features model.FeatureStore
	now      func() time.Time
	logger   *logger.Logger
}

func NewExecutor(ledger model.LedgerStore, features model.FeatureStore, logger *logger.Logger) *Executor {
	return &Executor{
		ledger:   ledger,
		features: features,
		now:      time.Now,
		logger:   logger,
	}
}

// Check returns the cached result for action in the session, if any. Ledger
// read errors are reported as a miss.
func (e *Executor) Check(ctx context.Context, sessionID, action string) (model.ActionResult, bool) {
	key := model.IdempotencyKey(sessionID, action)

	result, err := e.ledger.GetCompletion(ctx, sessionID, key)
	if errors.Is(err, model.ErrNotFound) {
		return model.ActionResult{}, false
	}
	if err != nil {
		e.logger.Error("Executor: failed to read ledger, executing without cache",
			"session_id", sessionID,
			"key", key,
			"error", err.Error())
		return model.ActionResult{}, false
	}

	return result, true
}

// Execute returns the cached result marked idempotent when action already
// completed for the session. Otherwise it runs op and records a successful
// result. Failed operations are never recorded so a retry may run again.
func (e *Executor) Execute(ctx context.Context, sessionID, action string, op Operation) model.ActionResult {
	if cached, ok := e.Check(ctx, sessionID, action); ok {
		e.logger.Info("Executor: returning cached result",
			"session_id", sessionID,
			"action", action)
		cached.Idempotent = true
		return cached
	}

	result, err := op(ctx)
	if err != nil {
		e.logger.Error("Executor: action failed",
			"session_id", sessionID,
			"action", action,
			"error", err.Error())
		return model.ActionResult{
			Success:   false,
			Action:    action,
			Timestamp: e.now(),
			Error:     err.Error(),
		}
	}

	result.Success = true
	result.Action = action
	result.Idempotent = false
	if result.Timestamp.IsZero() {
		result.Timestamp = e.now()
	}

	key := model.IdempotencyKey(sessionID, action)
	err = e.ledger.RecordCompletion(ctx, sessionID, key, result)
	switch {
	case err == nil:
	case errors.Is(err, model.ErrConflict):
		// A concurrent turn recorded first; its result stays authoritative.
		e.logger.Warn("Executor: action completed concurrently, duplicate execution",
			"session_id", sessionID,
			"key", key)
		if first, getErr := e.ledger.GetCompletion(ctx, sessionID, key); getErr == nil {
			first.Idempotent = true
			return first
		}
	default:
		e.logger.Error("Executor: failed to record completion, duplicate execution possible on retry",
			"session_id", sessionID,
			"key", key,
			"error", err.Error())
	}

	return result
}

// SetVoicemail toggles the voicemail feature through the ledger.
func (e *Executor) SetVoicemail(ctx context.Context, sessionID, customerID, phoneNumber string, active bool) model.ActionResult {
	action := model.IntentDeactivateVoicemail.String()
	status := FeatureInactive
	if active {
		action = model.IntentActivateVoicemail.String()
		status = FeatureActive
	}

	return e.Execute(ctx, sessionID, action, func(ctx context.Context) (model.ActionResult, error) {
		if err := e.features.SetFeature(ctx, phoneNumber, active); err != nil {
			return model.ActionResult{}, fmt.Errorf("failed to set voicemail: %w", err)
		}
		return model.ActionResult{
			CustomerID:    customerID,
			FeatureStatus: status,
			Timestamp:     e.now(),
		}, nil
	})
}

// VoicemailStatus reads the feature state. It performs no side effects.
func (e *Executor) VoicemailStatus(ctx context.Context, phoneNumber string) (string, error) {
	active, err := e.features.GetFeature(ctx, phoneNumber)
	if err != nil {
		return "", fmt.Errorf("failed to get voicemail status: %w", err)
	}
	if active {
		return FeatureActive, nil
	}
	return FeatureInactive, nil
}
