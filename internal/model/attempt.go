package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates exam attempt states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
)

// Answer is a single selected option for a question. QuestionID is kept as
// the raw string the client sent: ids that match no question score zero
// instead of failing the whole submission.
type Answer struct {
	QuestionID    string `json:"questionId" binding:"required"`
	SelectedIndex int    `json:"selectedIndex"`
}

// ExamAttempt is one user's timed run at one exam. StartTime is assigned by the
// server on creation and never changes; once Status is SUBMITTED the answers,
// score and end time are frozen.
type ExamAttempt struct {
	ID        uuid.UUID     `json:"id"`
	ExamID    uuid.UUID     `json:"examId"`
	UserID    int           `json:"userId"`
	Answers   []Answer      `json:"answers"`
	StartTime time.Time     `json:"startTime"`
	EndTime   *time.Time    `json:"endTime,omitempty"`
	Score     int           `json:"marksScore"`
	Status    AttemptStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Deadline is the latest instant a submission is accepted.
func (a *ExamAttempt) Deadline(durationMinutes int, grace time.Duration) time.Time {
	return a.StartTime.Add(time.Duration(durationMinutes)*time.Minute + grace)
}

// StartAttemptRequest is the payload for POST /attempt/start.
type StartAttemptRequest struct {
	ExamID uuid.UUID `json:"examId" binding:"required"`
}

// SubmitAttemptRequest is the payload for POST /attempt/submit.
type SubmitAttemptRequest struct {
	ExamID  uuid.UUID `json:"examId" binding:"required"`
	Answers []Answer  `json:"answers" binding:"max=1000,dive"`
}

// OverdueAttempt is an IN_PROGRESS attempt past its deadline, awaiting
// manual review.
type OverdueAttempt struct {
	AttemptID uuid.UUID `json:"attemptId"`
	ExamID    uuid.UUID `json:"examId"`
	UserID    int       `json:"userId"`
	StartTime time.Time `json:"startTime"`
	Deadline  time.Time `json:"deadline"`
}

// OverdueCursor is the position after which the next page of overdue
// attempts starts. Pages are ordered by (StartTime, AttemptID).
type OverdueCursor struct {
	StartTime time.Time
	AttemptID uuid.UUID
}

// Cursor returns the position just past o.
func (o OverdueAttempt) Cursor() *OverdueCursor {
	return &OverdueCursor{StartTime: o.StartTime, AttemptID: o.AttemptID}
}

// LiveAttempt is an IN_PROGRESS attempt as shown on the live monitor.
type LiveAttempt struct {
	AttemptID uuid.UUID `json:"attemptId"`
	UserID    int       `json:"userId"`
	StartTime time.Time `json:"startTime"`
}
