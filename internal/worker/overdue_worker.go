package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
)

const (
	// OverdueBatchSize is the page size of one overdue listing query.
	OverdueBatchSize = 200
	scanTimeout      = 10 * time.Second
)

// OverdueLister finds live attempts past their deadline.
type OverdueLister interface {
	ListOverdue(ctx context.Context, examID *uuid.UUID, now time.Time, grace time.Duration, after *model.OverdueCursor, limit int) ([]model.OverdueAttempt, error)
}

// OverdueMarker remembers which attempts were already flagged. Mark reports
// true only the first time an attempt is seen.
type OverdueMarker interface {
	Mark(ctx context.Context, examID, attemptID uuid.UUID) (bool, error)
}

// RedisOverdueMarker keeps one Redis set of flagged attempt ids per exam.
type RedisOverdueMarker struct {
	rdb *redis.Client
}

func NewRedisOverdueMarker(rdb *redis.Client) *RedisOverdueMarker {
	return &RedisOverdueMarker{rdb: rdb}
}

func (m *RedisOverdueMarker) Mark(ctx context.Context, examID, attemptID uuid.UUID) (bool, error) {
	added, err := m.rdb.SAdd(ctx, config.CacheKey.OverdueAttemptsKey(examID.String()), attemptID.String()).Result()
	if err != nil {
		return false, err
	}
	return added == 1, nil
}

// OverdueWorker periodically flags IN_PROGRESS attempts that can no longer be
// submitted. It only reports them; attempt state is never changed here.
type OverdueWorker struct {
	attempts OverdueLister
	marker   OverdueMarker
	monitor  service.MonitorPublisher
	every    time.Duration
	log      zerolog.Logger
	now      func() time.Time
}

func NewOverdueWorker(attempts OverdueLister, marker OverdueMarker, monitor service.MonitorPublisher, every time.Duration, log zerolog.Logger) *OverdueWorker {
	return &OverdueWorker{
		attempts: attempts,
		marker:   marker,
		monitor:  monitor,
		every:    every,
		log:      log.With().Str("component", "overdue_worker").Logger(),
		now:      time.Now,
	}
}

// Start scans on every tick until ctx is cancelled.
func (w *OverdueWorker) Start(ctx context.Context) {
	w.log.Info().Dur("every", w.every).Msg("OverdueWorker started")

	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("OverdueWorker stopping")
			return
		case <-ticker.C:
			if _, err := w.Scan(ctx); err != nil && ctx.Err() == nil {
				w.log.Error().Err(err).Msg("Overdue scan failed")
			}
		}
	}
}

// Scan runs one pass over every overdue attempt, a page at a time, and
// returns the number of newly flagged attempts.
func (w *OverdueWorker) Scan(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	now := w.now()
	flagged := 0
	var after *model.OverdueCursor
	for {
		page, err := w.attempts.ListOverdue(ctx, nil, now, service.SubmitGrace, after, OverdueBatchSize)
		if err != nil {
			return flagged, err
		}

		n, err := w.flag(ctx, page)
		flagged += n
		if err != nil {
			return flagged, err
		}

		if len(page) < OverdueBatchSize {
			break
		}
		after = page[len(page)-1].Cursor()
	}

	if flagged > 0 {
		w.log.Info().Int("count", flagged).Msg("Overdue scan complete")
	}
	return flagged, nil
}

func (w *OverdueWorker) flag(ctx context.Context, page []model.OverdueAttempt) (int, error) {
	flagged := 0
	for _, o := range page {
		isNew, err := w.marker.Mark(ctx, o.ExamID, o.AttemptID)
		if err != nil {
			return flagged, err
		}
		if !isNew {
			continue
		}
		flagged++

		w.log.Warn().
			Str("attempt_id", o.AttemptID.String()).
			Str("exam_id", o.ExamID.String()).
			Int("user_id", o.UserID).
			Time("deadline", o.Deadline).
			Msg("Attempt overdue, awaiting manual review")

		if w.monitor == nil {
			continue
		}
		msg := service.MonitorMessage{
			Type:      service.MonitorAttemptOverdue,
			ExamID:    o.ExamID,
			AttemptID: o.AttemptID,
			UserID:    o.UserID,
			At:        o.Deadline,
		}
		if err := w.monitor.Publish(ctx, msg); err != nil {
			w.log.Warn().Err(err).Msg("Failed to publish overdue attempt")
		}
	}
	return flagged, nil
}
