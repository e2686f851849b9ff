package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// ProctorEventRepository is the append-only store of validated proctor events.
// It exposes no update or delete.
type ProctorEventRepository struct {
	pool *pgxpool.Pool
}

// NewProctorEventRepository creates a new ProctorEventRepository.
func NewProctorEventRepository(pool *pgxpool.Pool) *ProctorEventRepository {
	return &ProctorEventRepository{pool: pool}
}

// Append inserts e and fills in its id.
func (r *ProctorEventRepository) Append(ctx context.Context, e *model.ProctorEvent) error {
	var evidence *string
	if e.EvidenceImage != "" {
		evidence = &e.EvidenceImage
	}
	return r.pool.QueryRow(ctx,
		`INSERT INTO proctor_events (user_id, exam_id, attempt_id, event_type, metadata, evidence_image, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		e.UserID, e.ExamID, e.AttemptID, e.EventType, e.Metadata, evidence, e.Timestamp,
	).Scan(&e.ID)
}

// CountByType returns the number of stored events per type for one attempt,
// grouped in the database.
func (r *ProctorEventRepository) CountByType(ctx context.Context, attemptID uuid.UUID) (map[model.EventType]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT event_type, COUNT(*)
		 FROM proctor_events
		 WHERE attempt_id = $1
		 GROUP BY event_type`,
		attemptID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[model.EventType]int)
	for rows.Next() {
		var (
			t model.EventType
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

// ListRecent returns at most limit events for the attempt, newest first.
func (r *ProctorEventRepository) ListRecent(ctx context.Context, attemptID uuid.UUID, limit int) ([]model.ProctorEvent, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, exam_id, attempt_id, event_type, metadata, COALESCE(evidence_image, ''), recorded_at
		 FROM proctor_events
		 WHERE attempt_id = $1
		 ORDER BY recorded_at DESC, seq DESC
		 LIMIT $2`,
		attemptID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []model.ProctorEvent
	for rows.Next() {
		var e model.ProctorEvent
		if err := rows.Scan(&e.ID, &e.UserID, &e.ExamID, &e.AttemptID, &e.EventType, &e.Metadata, &e.EvidenceImage, &e.Timestamp); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
