package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dtroode/telcoassist-server/internal/model"
)

var _ model.AuditSink = (*AuditRepository)(nil)

// AuditRepository writes audit records through database/sql so it can live
// in a separate database from the session store.
type AuditRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// OpenAuditDB opens a database/sql handle backed by the pgx driver.
func OpenAuditDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	return db, nil
}

func NewAuditRepository(db *sql.DB, timeout time.Duration) *AuditRepository {
	return &AuditRepository{
		db:      db,
		timeout: timeout,
	}
}

func (r *AuditRepository) Record(ctx context.Context, rec model.AuditRecord) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	citations := rec.Citations
	if citations == nil {
		citations = []string{}
	}
	rawCitations, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("failed to encode citations: %w", err)
	}

	var errText sql.NullString
	if rec.Error != "" {
		errText = sql.NullString{String: rec.Error, Valid: true}
	}

	const query = `
		INSERT INTO audit_logs (log_id, logged_at, session_id, customer_id, intent, confidence, user_message,
			response_text, model_version, grounded, citations, latency_ms, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = r.db.ExecContext(ctx, query,
		rec.LogID, rec.Timestamp, rec.SessionID, rec.CustomerID, rec.Intent, rec.Confidence, rec.UserMessage,
		rec.ResponseText, rec.ModelVersion, rec.Grounded, string(rawCitations), rec.LatencyMS, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit record: %w", err)
	}

	return nil
}

func (r *AuditRepository) Close() error {
	return r.db.Close()
}
