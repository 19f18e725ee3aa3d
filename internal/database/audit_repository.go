package database

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dtslogistics/pricing-agent/internal/models"
	"github.com/dtslogistics/pricing-agent/pkg/interfaces"
	"github.com/google/uuid"
)

const insertAuditSQL = `INSERT INTO pricing_audit
	(id, recorded_at, quote_id, username, execution_seconds, final_rating,
	 suggested_price, combined_confidence, request, result)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

var _ interfaces.AuditSink = (*PostgresAuditSink)(nil)

// PostgresAuditSink inserts one pricing_audit row per analysis. The request
// and result are stored as JSONB.
type PostgresAuditSink struct {
	db DatabasePool
}

func NewPostgresAuditSink(db DatabasePool) *PostgresAuditSink {
	return &PostgresAuditSink{db: db}
}

func (s *PostgresAuditSink) Name() string { return "postgres" }

func (s *PostgresAuditSink) Record(ctx context.Context, entry models.AuditEntry) error {
	id := entry.ID
	if id == "" {
		id = uuid.NewString()
	}
	request, err := json.Marshal(entry.Request)
	if err != nil {
		return fmt.Errorf("failed to encode audit request: %w", err)
	}
	result, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("failed to encode audit result: %w", err)
	}

	var (
		rating     string
		suggested  float64
		confidence int
	)
	if entry.Result != nil {
		rating = entry.Result.FinalRating
		suggested = entry.Result.SuggestedPrice
		confidence = entry.Result.CombinedConfidence
	}

	if _, err := s.db.Exec(ctx, insertAuditSQL,
		id,
		entry.Timestamp,
		entry.QuoteID,
		entry.User,
		entry.ExecutionSeconds,
		rating,
		suggested,
		confidence,
		request,
		result,
	); err != nil {
		return fmt.Errorf("failed to insert audit row: %w", err)
	}
	return nil
}
