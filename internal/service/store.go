package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// AttemptStore persists exam attempts. Implemented by repository.AttemptRepository.
type AttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamAttempt, error)
	FindActive(ctx context.Context, userID int, examID uuid.UUID) (*model.ExamAttempt, error)
	Create(ctx context.Context, a *model.ExamAttempt) error
	Finalize(ctx context.Context, a *model.ExamAttempt) error
	ListOverdue(ctx context.Context, examID *uuid.UUID, now time.Time, grace time.Duration, after *model.OverdueCursor, limit int) ([]model.OverdueAttempt, error)
}

// EventStore is the append-only proctor event log.
// Implemented by repository.ProctorEventRepository.
type EventStore interface {
	Append(ctx context.Context, e *model.ProctorEvent) error
	CountByType(ctx context.Context, attemptID uuid.UUID) (map[model.EventType]int, error)
	ListRecent(ctx context.Context, attemptID uuid.UUID, limit int) ([]model.ProctorEvent, error)
}

// ExamStore reads exams owned by the authoring side.
type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
}

// QuestionStore reads an exam's question set.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// UserStore reads identity records.
type UserStore interface {
	GetByID(ctx context.Context, id int) (*model.User, error)
}
