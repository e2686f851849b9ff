package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ProctorService binds incoming violation events to the caller's live attempt
// and appends them to the event store.
type ProctorService struct {
	attempts         AttemptStore
	events           EventStore
	monitor          MonitorPublisher
	maxEvidenceBytes int
	log              zerolog.Logger
	now              func() time.Time
}

// NewProctorService creates a new ProctorService. maxEvidenceBytes <= 0
// disables the evidence size check.
func NewProctorService(
	attempts AttemptStore,
	events EventStore,
	monitor MonitorPublisher,
	maxEvidenceBytes int,
	log zerolog.Logger,
) *ProctorService {
	return &ProctorService{
		attempts:         attempts,
		events:           events,
		monitor:          monitor,
		maxEvidenceBytes: maxEvidenceBytes,
		log:              log.With().Str("component", "proctor_service").Logger(),
		now:              time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (s *ProctorService) SetClock(now func() time.Time) {
	s.now = now
}

// Ingest validates one event and persists it against the caller's IN_PROGRESS
// attempt. Checks run in order: event type, live attempt, metadata size,
// evidence size. Nothing is written unless all of them pass.
func (s *ProctorService) Ingest(ctx context.Context, userID int, req model.LogProctorEventRequest) (*model.ProctorEvent, error) {
	if !req.EventType.Valid() {
		return nil, ErrInvalidEventType
	}

	attempt, err := s.attempts.FindActive(ctx, userID, req.ExamID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, fmt.Errorf("find active attempt: %w", err)
	}

	if len(req.Metadata) > model.MaxMetadataKeys {
		return nil, ErrMetadataTooLarge
	}
	if s.maxEvidenceBytes > 0 && len(req.EvidenceImage) > s.maxEvidenceBytes {
		return nil, ErrEvidenceTooLarge
	}

	event := &model.ProctorEvent{
		UserID:        userID,
		ExamID:        req.ExamID,
		AttemptID:     attempt.ID,
		EventType:     req.EventType,
		Timestamp:     s.now().UTC(),
		Metadata:      req.Metadata,
		EvidenceImage: req.EvidenceImage,
	}

	if err := s.events.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("append proctor event: %w", err)
	}

	s.log.Debug().
		Int("user_id", userID).
		Str("exam_id", req.ExamID.String()).
		Str("attempt_id", attempt.ID.String()).
		Str("event_type", string(req.EventType)).
		Bool("evidence", req.EvidenceImage != "").
		Msg("Proctor event recorded")

	if s.monitor != nil {
		msg := MonitorMessage{
			Type:      MonitorProctorEvent,
			ExamID:    event.ExamID,
			AttemptID: event.AttemptID,
			UserID:    userID,
			EventType: event.EventType,
			At:        event.Timestamp,
		}
		if err := s.monitor.Publish(ctx, msg); err != nil {
			s.log.Warn().Err(err).Msg("Failed to publish proctor event")
		}
	}

	return event, nil
}

// AttemptIDFor resolves the caller's live attempt, used by the stream
// handler to reject a connection early.
func (s *ProctorService) AttemptIDFor(ctx context.Context, userID int, examID uuid.UUID) (uuid.UUID, error) {
	attempt, err := s.attempts.FindActive(ctx, userID, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return uuid.Nil, ErrNoActiveSession
		}
		return uuid.Nil, fmt.Errorf("find active attempt: %w", err)
	}
	return attempt.ID, nil
}
