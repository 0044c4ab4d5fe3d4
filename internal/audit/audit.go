// Package audit records who did what to an append-only log table. The sink
// is fire-and-forget from the caller's perspective: deployment outcomes never
// depend on audit writes landing.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Sink writes audit entries to Postgres.
type Sink struct{ db *sql.DB }

// NewSink creates a Postgres-backed audit sink.
func NewSink(db *sql.DB) *Sink { return &Sink{db: db} }

// Record inserts one audit entry. Metadata is stored as JSONB.
func (s *Sink) Record(ctx context.Context, orgID, actorID, action string, metadata map[string]interface{}) error {
	meta, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("encode audit metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, organization_id, actor_id, action, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, uuid.New().String(), orgID, actorID, action, meta)
	if err != nil {
		return fmt.Errorf("record audit: %w", err)
	}
	return nil
}
