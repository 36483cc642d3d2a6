package model

import (
	"context"
	"time"
)

// AuditRecord captures one orchestrated turn.
type AuditRecord struct {
	LogID        string
	Timestamp    time.Time
	SessionID    string
	CustomerID   string
	Intent       string
	Confidence   float64
	UserMessage  string
	ResponseText string
	ModelVersion string
	Grounded     bool
	Citations    []string
	LatencyMS    int64
	Error        string
}

// AuditSink receives audit records.
type AuditSink interface {
	Record(ctx context.Context, rec AuditRecord) error
}
