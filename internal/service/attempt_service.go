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

// SubmitGrace is added to the exam duration before a submission is rejected.
const SubmitGrace = 5 * time.Minute

// AttemptService runs the attempt lifecycle: idempotent start and timed submit.
type AttemptService struct {
	attempts  AttemptStore
	exams     ExamStore
	questions QuestionStore
	monitor   MonitorPublisher
	log       zerolog.Logger
	now       func() time.Time
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attempts AttemptStore,
	exams ExamStore,
	questions QuestionStore,
	monitor MonitorPublisher,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attempts:  attempts,
		exams:     exams,
		questions: questions,
		monitor:   monitor,
		log:       log.With().Str("component", "attempt_service").Logger(),
		now:       time.Now,
	}
}

// SetClock replaces the time source. Used by tests.
func (s *AttemptService) SetClock(now func() time.Time) {
	s.now = now
}

// Start returns the user's live attempt for the exam, creating one with a
// server-assigned start time when none exists.
func (s *AttemptService) Start(ctx context.Context, userID int, examID uuid.UUID) (*model.ExamAttempt, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	existing, err := s.attempts.FindActive(ctx, userID, exam.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find active attempt: %w", err)
	}

	attempt := &model.ExamAttempt{
		ExamID:    exam.ID,
		UserID:    userID,
		Answers:   []model.Answer{},
		StartTime: s.now().UTC(),
		Score:     0,
		Status:    model.AttemptStatusInProgress,
	}

	if err := s.attempts.Create(ctx, attempt); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			// Concurrent start won the insert; resume that attempt.
			winner, fetchErr := s.attempts.FindActive(ctx, userID, exam.ID)
			if fetchErr != nil {
				return nil, fmt.Errorf("concurrent start detected, but fetch failed: %w", fetchErr)
			}
			return winner, nil
		}
		return nil, fmt.Errorf("create attempt: %w", err)
	}

	s.log.Info().
		Int("user_id", userID).
		Str("exam_id", exam.ID.String()).
		Str("attempt_id", attempt.ID.String()).
		Msg("Attempt started")

	s.publish(ctx, MonitorMessage{
		Type:      MonitorAttemptStarted,
		ExamID:    exam.ID,
		AttemptID: attempt.ID,
		UserID:    userID,
		At:        attempt.StartTime,
	})

	return attempt, nil
}

// Submit scores and finalizes the user's most recent live attempt. A late
// submission is rejected with ErrTimeLimitExceeded and the attempt stays
// IN_PROGRESS for manual review.
//
// Two concurrent submits for the same attempt can both pass the active lookup
// and both persist a score; the last write wins.
func (s *AttemptService) Submit(ctx context.Context, userID int, examID uuid.UUID, answers []model.Answer) (*model.ExamAttempt, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	attempt, err := s.attempts.FindActive(ctx, userID, exam.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("find active attempt: %w", err)
	}

	now := s.now().UTC()
	if now.After(attempt.Deadline(exam.DurationMinutes, SubmitGrace)) {
		s.log.Warn().
			Int("user_id", userID).
			Str("exam_id", exam.ID.String()).
			Str("attempt_id", attempt.ID.String()).
			Dur("elapsed", now.Sub(attempt.StartTime)).
			Msg("Late submission rejected")
		return nil, ErrTimeLimitExceeded
	}

	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	if answers == nil {
		answers = []model.Answer{}
	}

	finalized := *attempt
	if err := advance(ctx, &finalized, lifecycleSubmit); err != nil {
		return nil, err
	}
	finalized.Answers = answers
	finalized.EndTime = &now
	finalized.Score = CalculateScore(answers, questions)

	if err := s.attempts.Finalize(ctx, &finalized); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoActiveAttempt
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	s.log.Info().
		Int("user_id", userID).
		Str("exam_id", exam.ID.String()).
		Str("attempt_id", finalized.ID.String()).
		Int("score", finalized.Score).
		Msg("Attempt submitted")

	score := finalized.Score
	s.publish(ctx, MonitorMessage{
		Type:      MonitorAttemptSubmitted,
		ExamID:    exam.ID,
		AttemptID: finalized.ID,
		UserID:    userID,
		Score:     &score,
		At:        now,
	})

	return &finalized, nil
}

// GetPaper returns the exam and its questions without answer keys.
func (s *AttemptService) GetPaper(ctx context.Context, examID uuid.UUID) (*model.ExamPaper, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	paper := &model.ExamPaper{
		Exam:      *exam,
		Questions: make([]model.QuestionForTaker, 0, len(questions)),
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, q.ForTaker())
	}
	return paper, nil
}

// ListOverdue returns live attempts of an exam that are past duration plus
// grace. Only the exam's creator may list them.
func (s *AttemptService) ListOverdue(ctx context.Context, examID uuid.UUID, requesterID int, limit int) ([]model.OverdueAttempt, error) {
	exam, err := s.AuthorizeExamOwner(ctx, examID, requesterID)
	if err != nil {
		return nil, err
	}

	overdue, err := s.attempts.ListOverdue(ctx, &exam.ID, s.now().UTC(), SubmitGrace, nil, limit)
	if err != nil {
		return nil, fmt.Errorf("list overdue attempts: %w", err)
	}
	if overdue == nil {
		overdue = []model.OverdueAttempt{}
	}
	return overdue, nil
}

// AuthorizeExamOwner checks that requesterID created the exam.
func (s *AttemptService) AuthorizeExamOwner(ctx context.Context, examID uuid.UUID, requesterID int) (*model.Exam, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.CreatedBy != requesterID {
		return nil, ErrNotExamOwner
	}
	return exam, nil
}

func (s *AttemptService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

func (s *AttemptService) publish(ctx context.Context, msg MonitorMessage) {
	if s.monitor == nil {
		return
	}
	if err := s.monitor.Publish(ctx, msg); err != nil {
		s.log.Warn().Err(err).Str("type", msg.Type).Msg("Failed to publish monitor message")
	}
}
