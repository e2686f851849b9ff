package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// MonitorStore is the read side of the live monitor.
type MonitorStore interface {
	ListLiveAttempts(ctx context.Context, examID uuid.UUID) ([]model.LiveAttempt, error)
	CountEventsByAttempt(ctx context.Context, examID uuid.UUID) (map[uuid.UUID]int64, error)
}

// MonitorService builds the initial state an exam owner sees when attaching
// to the live monitor.
type MonitorService struct {
	store MonitorStore
	log   zerolog.Logger
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(store MonitorStore, log zerolog.Logger) *MonitorService {
	return &MonitorService{
		store: store,
		log:   log.With().Str("component", "monitor_service").Logger(),
	}
}

// LiveAttemptStatus is one row of the monitor snapshot.
type LiveAttemptStatus struct {
	model.LiveAttempt
	EventCount int64 `json:"eventCount"`
}

// MonitorSnapshot lists live attempts with their event counts.
type MonitorSnapshot struct {
	Attempts    []LiveAttemptStatus `json:"attempts"`
	TotalEvents int64               `json:"totalEvents"`
}

// Snapshot fetches live attempts and event counts concurrently. Attempts are
// required; event counts are best-effort and default to zero.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		live      []model.LiveAttempt
		counts    map[uuid.UUID]int64
		liveErr   error
		countsErr error
		wg        sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		live, liveErr = s.store.ListLiveAttempts(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		counts, countsErr = s.store.CountEventsByAttempt(ctx, examID)
	}()
	wg.Wait()

	if liveErr != nil {
		return nil, liveErr
	}
	if countsErr != nil {
		s.log.Warn().Err(countsErr).Str("exam_id", examID.String()).Msg("Monitor snapshot without event counts")
		counts = nil
	}

	snapshot := &MonitorSnapshot{Attempts: make([]LiveAttemptStatus, 0, len(live))}
	for _, a := range live {
		n := counts[a.AttemptID]
		snapshot.Attempts = append(snapshot.Attempts, LiveAttemptStatus{LiveAttempt: a, EventCount: n})
		snapshot.TotalEvents += n
	}
	return snapshot, nil
}
