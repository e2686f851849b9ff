package model

import (
	"github.com/google/uuid"
)

// Question is a single multiple-choice question.
type Question struct {
	ID           uuid.UUID `json:"id"`
	ExamID       uuid.UUID `json:"examId"`
	Text         string    `json:"text"`
	Options      []string  `json:"options"`
	CorrectIndex int       `json:"correctIndex"`
	Marks        int       `json:"marks"`
}

// QuestionForTaker is a question without the correct answer.
type QuestionForTaker struct {
	ID      uuid.UUID `json:"id"`
	Text    string    `json:"text"`
	Options []string  `json:"options"`
	Marks   int       `json:"marks"`
}

// ForTaker strips the answer key.
func (q Question) ForTaker() QuestionForTaker {
	return QuestionForTaker{ID: q.ID, Text: q.Text, Options: q.Options, Marks: q.Marks}
}
