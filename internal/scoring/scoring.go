// Package scoring turns a submitted option set into a (score, max score)
// pair under a paper's marking rule. It performs no I/O.
package scoring

import (
	"errors"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

var (
	ErrMandatoryUnanswered = errors.New("mandatory question must be answered")
	ErrQuestionNotInPaper  = errors.New("question is not part of the paper")
)

type Result struct {
	Score    int `json:"score"`
	MaxScore int `json:"max_score"`
}

// ScoreInPaper finds the marking rule the paper binds to the question and
// scores the chosen options under it.
func ScoreInPaper(paper *models.Paper, question *models.Question, chosen []string) (Result, error) {
	rule, ok := paper.RuleFor(question.Code)
	if !ok {
		return Result{}, ErrQuestionNotInPaper
	}
	return Score(*rule, question, chosen)
}

// Score applies the marking rules in order: mandatory check, full penalty
// for any unknown or incorrect option, then per-type scoring.
//
// Multiple-correct questions award positive × Σweight / 100 in integer
// arithmetic, truncated toward zero.
func Score(rule models.PaperQuestion, question *models.Question, chosen []string) (Result, error) {
	selected := dedupe(chosen)
	max := rule.PositiveScore

	if len(selected) == 0 && rule.Mandatory {
		return Result{}, ErrMandatoryUnanswered
	}

	weight := 0
	for _, code := range selected {
		opt, ok := question.OptionByCode(code)
		if !ok || !opt.Correct {
			return Result{Score: -rule.NegativeScore, MaxScore: max}, nil
		}
		weight += opt.Weight
	}

	switch question.Type {
	case models.QuestionSingleCorrect:
		if len(selected) == 0 {
			return Result{Score: 0, MaxScore: max}, nil
		}
		return Result{Score: max, MaxScore: max}, nil
	case models.QuestionMultipleCorrect:
		return Result{Score: rule.PositiveScore * weight / 100, MaxScore: max}, nil
	default:
		return Result{Score: 0, MaxScore: max}, nil
	}
}

func dedupe(codes []string) []string {
	if len(codes) < 2 {
		return codes
	}
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}
