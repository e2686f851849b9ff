package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

const attemptColumns = `id, exam_id, user_id, answers, start_time, end_time, score, status, created_at`

// AttemptRepository handles exam attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

func scanAttempt(row pgx.Row) (*model.ExamAttempt, error) {
	a := &model.ExamAttempt{}
	if err := row.Scan(&a.ID, &a.ExamID, &a.UserID, &a.Answers, &a.StartTime, &a.EndTime, &a.Score, &a.Status, &a.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	if a.Answers == nil {
		a.Answers = []model.Answer{}
	}
	return a, nil
}

// GetByID retrieves an attempt by id.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+` FROM exam_attempts WHERE id = $1`, id))
}

// FindActive returns the most recent IN_PROGRESS attempt for the pair.
func (r *AttemptRepository) FindActive(ctx context.Context, userID int, examID uuid.UUID) (*model.ExamAttempt, error) {
	return scanAttempt(r.pool.QueryRow(ctx,
		`SELECT `+attemptColumns+`
		 FROM exam_attempts
		 WHERE user_id = $1 AND exam_id = $2 AND status = $3
		 ORDER BY created_at DESC
		 LIMIT 1`,
		userID, examID, model.AttemptStatusInProgress))
}

// Create inserts a new IN_PROGRESS attempt. The partial unique index on
// (user_id, exam_id) WHERE status = 'IN_PROGRESS' turns a concurrent duplicate
// into ErrConflict instead of a second live attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *model.ExamAttempt) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_attempts (exam_id, user_id, answers, start_time, score, status)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, exam_id) WHERE status = 'IN_PROGRESS' DO NOTHING
		 RETURNING id, created_at`,
		a.ExamID, a.UserID, a.Answers, a.StartTime, a.Score, a.Status,
	).Scan(&a.ID, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrConflict
	}
	return err
}

// Finalize writes the submitted answers, score and end time.
// Concurrent duplicate submits are not serialized here: both writes land and
// the last one wins.
func (r *AttemptRepository) Finalize(ctx context.Context, a *model.ExamAttempt) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_attempts
		 SET answers = $1, end_time = $2, score = $3, status = $4
		 WHERE id = $5`,
		a.Answers, a.EndTime, a.Score, a.Status, a.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListOverdue returns IN_PROGRESS attempts whose start time plus exam duration
// plus grace lies before now, ordered by (start_time, id). A nil examID lists
// across all exams; a non-nil after returns only rows past that cursor.
func (r *AttemptRepository) ListOverdue(ctx context.Context, examID *uuid.UUID, now time.Time, grace time.Duration, after *model.OverdueCursor, limit int) ([]model.OverdueAttempt, error) {
	query := `
		SELECT a.id, a.exam_id, a.user_id, a.start_time,
		       a.start_time + make_interval(mins => e.duration_minutes) + make_interval(secs => $1) AS deadline
		FROM exam_attempts a
		JOIN exams e ON e.id = a.exam_id
		WHERE a.status = 'IN_PROGRESS'
		  AND a.start_time + make_interval(mins => e.duration_minutes) + make_interval(secs => $1) < $2
	`
	args := []any{grace.Seconds(), now}

	if examID != nil {
		args = append(args, *examID)
		query += fmt.Sprintf(" AND a.exam_id = $%d", len(args))
	}

	if after != nil {
		args = append(args, after.StartTime, after.AttemptID)
		query += fmt.Sprintf(" AND (a.start_time, a.id) > ($%d, $%d)", len(args)-1, len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY a.start_time ASC, a.id ASC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OverdueAttempt
	for rows.Next() {
		var o model.OverdueAttempt
		if err := rows.Scan(&o.AttemptID, &o.ExamID, &o.UserID, &o.StartTime, &o.Deadline); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
