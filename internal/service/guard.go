package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/pbkdf2"

	"github.com/dtroode/telcoassist-server/internal/logger"
	"github.com/dtroode/telcoassist-server/internal/model"
)

// Verification reasons.
const (
	ReasonCustomerNotFound = "Customer not found"
	ReasonInvalidData      = "Invalid customer data"
	ReasonIncorrectPIN     = "Incorrect PIN"
)

// GuardPolicy configures PIN lockout.
type GuardPolicy struct {
	MaxAttempts int
	Lockout     time.Duration
	// Iterations is used when a customer record carries no iteration count.
	Iterations int
}

// Verification is the result of checking a PIN against a customer. Err is
// set when the check could not run; such a result is not a failed attempt.
type Verification struct {
	Verified bool
	Locked   bool
	Reason   string
	Err      error
}

// FailureOutcome is the result of counting a failed attempt.
type FailureOutcome struct {
	Locked            bool
	AttemptsRemaining int
	LockUntil         time.Time
}

// Authorization is the combined verify / record / reset outcome surfaced to
// the user.
type Authorization struct {
	Authorized        bool
	Locked            bool
	AttemptsRemaining int
	LockUntil         time.Time
	Message           string
	// Err reports a store failure. Message is empty and no attempt is counted.
	Err error
}

// Guard verifies PINs and enforces lockout. Attempts are counted on the
// session; the lock itself is stored on the customer.
type Guard struct {
	sessions  model.SessionStore
	customers model.CustomerStore
	policy    GuardPolicy
	hashPIN   func(pin string, salt []byte, iterations int) []byte
	now       func() time.Time
	logger    *logger.Logger
}

func NewGuard(
	sessions model.SessionStore,
	customers model.CustomerStore,
	policy GuardPolicy,
	logger *logger.Logger,
) *Guard {
	return &Guard{
		sessions:  sessions,
		customers: customers,
		policy:    policy,
		hashPIN:   pbkdf2SHA256,
		now:       time.Now,
		logger:    logger,
	}
}

// WithClock replaces the guard's clock.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Verify checks pin for the customer with phoneNumber. A locked customer is
// rejected before any hashing. An elapsed lock is cleared.
func (g *Guard) Verify(ctx context.Context, phoneNumber, pin string) Verification {
	customer, err := g.customers.GetByPhone(ctx, phoneNumber)
	if errors.Is(err, model.ErrNotFound) {
		g.logger.Info("Guard: customer not found", "phone_number", phoneNumber)
		return Verification{Reason: ReasonCustomerNotFound}
	}
	if err != nil {
		g.logger.Error("Guard: failed to get customer",
			"phone_number", phoneNumber,
			"error", err.Error())
		return Verification{Err: fmt.Errorf("failed to get customer: %w", err)}
	}

	now := g.now()
	if customer.PinLockedUntil != nil {
		if now.Before(*customer.PinLockedUntil) {
			minutesLeft := int(customer.PinLockedUntil.Sub(now).Minutes()) + 1
			g.logger.Info("Guard: customer locked",
				"phone_number", phoneNumber,
				"locked_until", customer.PinLockedUntil.UTC().Format(time.RFC3339))
			return Verification{
				Locked: true,
				Reason: fmt.Sprintf("Account locked due to failed PIN attempts. Try again in %d minutes.", minutesLeft),
			}
		}

		if err := g.customers.ClearLock(ctx, phoneNumber); err != nil {
			g.logger.Error("Guard: failed to clear elapsed lock",
				"phone_number", phoneNumber,
				"error", err.Error())
		}
	}

	if customer.PinHash == "" || customer.Salt == "" {
		g.logger.Error("Guard: customer has no PIN hash or salt", "phone_number", phoneNumber)
		return Verification{Reason: ReasonInvalidData}
	}
	salt, err := hex.DecodeString(customer.Salt)
	if err != nil {
		g.logger.Error("Guard: customer salt is not hex", "phone_number", phoneNumber)
		return Verification{Reason: ReasonInvalidData}
	}

	iterations := customer.PinIterations
	if iterations <= 0 {
		iterations = g.policy.Iterations
	}

	computed := hex.EncodeToString(g.hashPIN(pin, salt, iterations))
	if subtle.ConstantTimeCompare([]byte(computed), []byte(customer.PinHash)) != 1 {
		g.logger.Info("Guard: PIN mismatch",
			"phone_number", phoneNumber,
			"pin", logger.MaskSecret(pin))
		return Verification{Reason: ReasonIncorrectPIN}
	}

	return Verification{Verified: true}
}

// RecordFailure counts a failed attempt on the session and locks the
// customer on the MaxAttempts-th failure. The session counter is zeroed once
// the lock is recorded.
func (g *Guard) RecordFailure(ctx context.Context, sessionID, phoneNumber string) (FailureOutcome, error) {
	attempts, err := g.sessions.IncrementPinAttempts(ctx, sessionID)
	if err != nil {
		return FailureOutcome{}, fmt.Errorf("failed to increment pin attempts: %w", err)
	}

	if attempts < g.policy.MaxAttempts {
		return FailureOutcome{AttemptsRemaining: g.policy.MaxAttempts - attempts}, nil
	}

	lockUntil := g.now().Add(g.policy.Lockout)
	if err := g.customers.SetLockedUntil(ctx, phoneNumber, lockUntil); err != nil {
		return FailureOutcome{}, fmt.Errorf("failed to lock customer: %w", err)
	}
	g.logger.Warn("Guard: customer locked after failed PIN attempts",
		"session_id", sessionID,
		"phone_number", phoneNumber,
		"attempts", attempts,
		"locked_until", lockUntil.UTC().Format(time.RFC3339))

	if err := g.sessions.ResetPinAttempts(ctx, sessionID); err != nil {
		g.logger.Error("Guard: failed to reset attempts after lockout",
			"session_id", sessionID,
			"error", err.Error())
	}

	return FailureOutcome{Locked: true, LockUntil: lockUntil}, nil
}

// Reset zeroes the session's attempt counter.
func (g *Guard) Reset(ctx context.Context, sessionID string) error {
	if err := g.sessions.ResetPinAttempts(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to reset pin attempts: %w", err)
	}
	return nil
}

// Authorize runs Verify and then Reset or RecordFailure, producing the
// message shown to the user on failure.
func (g *Guard) Authorize(ctx context.Context, sessionID, phoneNumber, pin string) Authorization {
	v := g.Verify(ctx, phoneNumber, pin)
	if v.Err != nil {
		return Authorization{Err: v.Err}
	}
	if v.Locked {
		return Authorization{Locked: true, Message: v.Reason}
	}

	if v.Verified {
		if err := g.Reset(ctx, sessionID); err != nil {
			g.logger.Error("Guard: failed to reset attempts",
				"session_id", sessionID,
				"error", err.Error())
		}
		return Authorization{Authorized: true, AttemptsRemaining: g.policy.MaxAttempts}
	}

	outcome, err := g.RecordFailure(ctx, sessionID, phoneNumber)
	if err != nil {
		g.logger.Error("Guard: failed to record failed attempt",
			"session_id", sessionID,
			"error", err.Error())
		return Authorization{Err: err}
	}

	if outcome.Locked {
		return Authorization{
			Locked:    true,
			LockUntil: outcome.LockUntil,
			Message: fmt.Sprintf("Account locked. Too many failed PIN attempts. Locked until %s.",
				outcome.LockUntil.UTC().Format(time.RFC3339)),
		}
	}

	return Authorization{
		AttemptsRemaining: outcome.AttemptsRemaining,
		Message:           fmt.Sprintf("Incorrect PIN. %d attempts remaining.", outcome.AttemptsRemaining),
	}
}

// HashPIN derives the stored hex digest for pin with a hex salt.
func HashPIN(pin, saltHex string, iterations int) (string, error) {
	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("failed to decode salt: %w", err)
	}
	return hex.EncodeToString(pbkdf2SHA256(pin, salt, iterations)), nil
}

// NewSalt returns a random 16-byte salt in hex.
func NewSalt() (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	return hex.EncodeToString(salt), nil
}

func pbkdf2SHA256(pin string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(pin), salt, iterations, sha256.Size, sha256.New)
}
