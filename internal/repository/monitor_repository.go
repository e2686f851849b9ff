package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// MonitorRepository provides read-only queries for the live exam monitor.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListLiveAttempts returns every IN_PROGRESS attempt for the exam, oldest first.
func (r *MonitorRepository) ListLiveAttempts(ctx context.Context, examID uuid.UUID) ([]model.LiveAttempt, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, start_time
		 FROM exam_attempts
		 WHERE exam_id = $1 AND status = 'IN_PROGRESS'
		 ORDER BY start_time`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.LiveAttempt
	for rows.Next() {
		var a model.LiveAttempt
		if err := rows.Scan(&a.AttemptID, &a.UserID, &a.StartTime); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountEventsByAttempt returns the number of proctor events recorded for each
// live attempt of the exam.
func (r *MonitorRepository) CountEventsByAttempt(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.attempt_id, COUNT(*)
		 FROM proctor_events e
		 JOIN exam_attempts a ON a.id = e.attempt_id
		 WHERE a.exam_id = $1 AND a.status = 'IN_PROGRESS'
		 GROUP BY e.attempt_id`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var id uuid.UUID
		var count int64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		counts[id] = count
	}

	return counts, rows.Err()
}
