package model

import (
	"context"
	"time"
)

// Language is the response language.
type Language string

const (
	LanguageEN Language = "EN"
	LanguageBM Language = "BM"
)

// ParseLanguage returns LanguageBM for "BM" and LanguageEN otherwise.
func ParseLanguage(s string) Language {
	if Language(s) == LanguageBM {
		return LanguageBM
	}
	return LanguageEN
}

// Request is the canonical inbound message produced by a channel adapter.
type Request struct {
	SessionID   string
	CustomerID  string
	PhoneNumber string
	Message     string
	Channel     Channel
	TurnNumber  int
}

// Response is what the orchestrator returns for every turn.
type Response struct {
	SessionID        string
	Message          string
	Intent           string
	Confidence       float64
	Grounded         bool
	Citations        []string
	RequiresFollowup bool
	Escalate         bool
	Language         Language
	Timestamp        time.Time
	// AwaitingAction is the wait recorded for the next turn.
	AwaitingAction AwaitingAction
}

// Retrieval is a knowledge-base answer.
type Retrieval struct {
	Response  string
	Grounded  bool
	Citations []string
}

// Classifier extracts intent and slots from a raw message. Implementations
// return UnclearClassification instead of failing.
type Classifier interface {
	Classify(ctx context.Context, message string) Classification
}

// Generator renders a user-facing message. Implementations return a safe
// fallback text instead of failing.
type Generator interface {
	Generate(ctx context.Context, intent string, data map[string]any, lang Language) string
}

// Retriever answers informational questions from the knowledge base.
type Retriever interface {
	Retrieve(ctx context.Context, query string, lang Language) Retrieval
}

// SessionLocker serializes turns of one session across workers.
type SessionLocker interface {
	Acquire(ctx context.Context, sessionID string) (release func(), err error)
}
