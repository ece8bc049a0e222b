package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/attendance-kiosk/internal/database"
)

// OutcomeRepository provides PostgreSQL-backed outcome journaling
type OutcomeRepository struct {
	pool *Pool
}

// NewOutcomeRepository creates a new PostgreSQL outcome repository
func NewOutcomeRepository(pool *Pool) *OutcomeRepository {
	return &OutcomeRepository{pool: pool}
}

// Record stores an outcome. A second record for the same flow attempt is ignored.
func (r *OutcomeRepository) Record(ctx context.Context, rec database.OutcomeRecord) error {
	query := `
		INSERT INTO capture_outcomes (
			id, flow_id, attempt, mode, subject, state, failure_kind, failure_reason,
			message, student, admission_no, confidence, ambiguous, recorded_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (flow_id, attempt) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		rec.ID,
		rec.FlowID,
		int64(rec.Attempt),
		rec.Mode,
		rec.Subject,
		rec.State,
		rec.FailureKind,
		rec.FailureReason,
		rec.Message,
		rec.Student,
		rec.AdmissionNo,
		rec.Confidence,
		rec.Ambiguous,
		rec.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// Recent returns the newest outcomes first
func (r *OutcomeRepository) Recent(ctx context.Context, limit int) ([]database.OutcomeRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, flow_id, attempt, mode, subject, state, failure_kind, failure_reason,
			message, student, admission_no, confidence, ambiguous, recorded_at
		FROM capture_outcomes
		ORDER BY recorded_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent outcomes: %w", err)
	}
	defer rows.Close()

	var out []database.OutcomeRecord
	for rows.Next() {
		var rec database.OutcomeRecord
		var attempt int64
		if err := rows.Scan(
			&rec.ID,
			&rec.FlowID,
			&attempt,
			&rec.Mode,
			&rec.Subject,
			&rec.State,
			&rec.FailureKind,
			&rec.FailureReason,
			&rec.Message,
			&rec.Student,
			&rec.AdmissionNo,
			&rec.Confidence,
			&rec.Ambiguous,
			&rec.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Attempt = uint64(attempt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

// CountByState returns the number of outcomes per state
func (r *OutcomeRepository) CountByState(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, "SELECT state, COUNT(*) FROM capture_outcomes GROUP BY state")
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var state string
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		counts[state] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcome counts: %w", err)
	}
	return counts, nil
}
