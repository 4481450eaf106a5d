package validator

import (
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// QuestionValidator enforces answer-key rules on questions and papers.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion checks option codes are unique and the answer key fits
// the question type: exactly one correct option for single_correct, correct
// weights summing to 100 for multiple_correct.
func (v *QuestionValidator) ValidateQuestion(q *models.Question) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[string]struct{}, len(q.Options))
	correct := 0
	for i, opt := range q.Options {
		if _, dup := seen[opt.Code]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("options[%d].code", i),
				Message: "must be unique within the question",
				Value:   opt.Code,
				Rule:    "unique_option_code",
			})
		}
		seen[opt.Code] = struct{}{}
		if opt.Correct {
			correct++
		}
	}

	switch q.Type {
	case models.QuestionSingleCorrect:
		if correct != 1 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "must have exactly one correct option",
				Value:   correct,
				Rule:    "single_correct",
			})
		}
	case models.QuestionMultipleCorrect:
		if correct == 0 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "must have at least one correct option",
				Rule:    "multiple_correct",
			})
		}
		if total := q.CorrectWeightTotal(); total != 100 {
			errs = append(errs, ValidationError{
				Field:   "options",
				Message: "correct option weights must sum to 100",
				Value:   total,
				Rule:    "option_weights",
			})
		}
	}

	return errs
}

// ValidatePaper checks each question appears at most once and that the
// penalty never exceeds what a question can award in reverse.
func (v *QuestionValidator) ValidatePaper(p *models.Paper) ValidationErrors {
	var errs ValidationErrors

	seen := make(map[uint]struct{}, len(p.Questions))
	for i, pq := range p.Questions {
		if _, dup := seen[pq.QuestionID]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questions[%d].question_id", i),
				Message: "question already bound to the paper",
				Value:   pq.QuestionID,
				Rule:    "unique_question",
			})
		}
		seen[pq.QuestionID] = struct{}{}

		if pq.PositiveScore == 0 && pq.NegativeScore > 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("questions[%d].negative_score", i),
				Message: "cannot penalize a question that awards nothing",
				Value:   pq.NegativeScore,
				Rule:    "negative_score",
			})
		}
	}

	return errs
}
