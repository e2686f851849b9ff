package model

import (
	"time"

	"github.com/google/uuid"
)

// Exam is owned by the authoring side; the proctoring core only reads it.
type Exam struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	DurationMinutes int       `json:"durationMinutes"`
	IsActive        bool      `json:"isActive"`
	CreatedBy       int       `json:"createdBy"`
	CreatedAt       time.Time `json:"createdAt"`
}

// ExamPaper is what an exam taker receives: questions without answer keys.
type ExamPaper struct {
	Exam      Exam               `json:"exam"`
	Questions []QuestionForTaker `json:"questions"`
}
