package memory

import (
	"context"
	"sync"

	"github.com/dtroode/telcoassist-server/internal/model"
)

var _ model.AuditSink = (*AuditSink)(nil)

// AuditSink collects audit records in memory.
type AuditSink struct {
	mu      sync.Mutex
	records []model.AuditRecord
}

func NewAuditSink() *AuditSink {
	return &AuditSink{}
}

func (s *AuditSink) Record(_ context.Context, rec model.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

func (s *AuditSink) Records() []model.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.AuditRecord, len(s.records))
	copy(out, s.records)
	return out
}
