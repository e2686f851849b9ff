package service

import (
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// CalculateScore sums the marks of correctly answered questions. Answers to
// unknown questions and out-of-range indices contribute zero.
func CalculateScore(answers []model.Answer, questions []model.Question) int {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID.String()] = q
	}

	total := 0
	for _, a := range answers {
		q, ok := byID[strings.ToLower(a.QuestionID)]
		if ok && a.SelectedIndex == q.CorrectIndex {
			total += q.Marks
		}
	}
	return total
}
