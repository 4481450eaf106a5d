package services

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
)

type simulationService struct {
	repo       repositories.Repository
	conclusion ConclusionService
	logger     *slog.Logger
}

// NewSimulationService builds a load harness that writes attempts straight
// through the repositories, stamped inside the exam window, so it can run
// after the window has closed.
func NewSimulationService(repo repositories.Repository, conclusion ConclusionService, logger *slog.Logger) SimulationService {
	return &simulationService{repo: repo, conclusion: conclusion, logger: logger}
}

func (s *simulationService) Run(ctx context.Context, examID uint, cfg SimulationConfig) (*SimulationSummary, error) {
	exam, err := s.repo.Exam().GetByIDWithPaper(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.Paper == nil {
		return nil, ErrPaperNotFound
	}
	if len(cfg.Users) == 0 {
		return nil, newKind(ErrValidation, "simulation needs at least one user")
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, uint64(examID)))
	summary := &SimulationSummary{ExamID: examID}

	for _, userID := range cfg.Users {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		submitted, err := s.simulateUser(ctx, exam, userID, cfg.SkipRate, rng)
		if err != nil {
			return nil, fmt.Errorf("simulate %s: %w", userID, err)
		}
		if submitted >= 0 {
			summary.Attempts++
			summary.Submissions += submitted
		}
	}

	s.logger.Info("Simulation finished",
		"exam_id", examID, "attempts", summary.Attempts, "submissions", summary.Submissions)

	summary.Conclusion, err = s.conclusion.Conclude(ctx, examID)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// simulateUser returns the number of answers recorded, or -1 when the user
// had already finished the exam.
func (s *simulationService) simulateUser(ctx context.Context, exam *models.Exam, userID string, skipRate float64, rng *rand.Rand) (int, error) {
	paper := exam.Paper
	attempts := s.repo.Attempt()

	attempt, err := attempts.GetByExamAndUser(ctx, exam.ID, userID)
	if repositories.IsNotFoundError(err) {
		enrolled := exam.StartTime
		attempt = &models.Attempt{
			PaperID:    paper.ID,
			ExamID:     &exam.ID,
			UserID:     userID,
			Type:       models.AttemptCompetitive,
			Status:     models.AttemptNotStarted,
			EnrolledOn: &enrolled,
		}
		if err = attempts.Create(ctx, attempt); err != nil {
			return 0, err
		}
		if err = s.repo.Exam().IncrementEnrolled(ctx, exam.ID); err != nil {
			s.logger.Warn("Failed to bump enrolled count", "exam_id", exam.ID, "error", err)
		}
	} else if err != nil {
		return 0, err
	}

	switch attempt.Status {
	case models.AttemptNotStarted:
		if _, err = attempts.MarkStarted(ctx, attempt.ID, exam.StartTime, paper.MaxScore()); err != nil {
			return 0, err
		}
	case models.AttemptInProgress:
	default:
		return -1, nil
	}

	subjectMax := paper.SubjectMaxScores()
	window := exam.EndTime.Sub(exam.StartTime)
	submitted := 0

	for _, rule := range paper.OrderedQuestions() {
		question := rule.Question
		if !rule.Mandatory && rng.Float64() < skipRate {
			continue
		}
		chosen := randomChoice(&question, rng)
		if len(chosen) == 0 {
			continue
		}

		result, err := scoring.Score(rule, &question, chosen)
		if err != nil {
			return 0, err
		}

		submission := &models.Submission{
			AttemptID:     attempt.ID,
			QuestionID:    question.ID,
			UserID:        userID,
			PaperID:       paper.ID,
			SubjectCode:   question.SubjectCode,
			OptionsChosen: chosen,
			Score:         result.Score,
			MaxScore:      result.MaxScore,
			SubmittedAt:   exam.StartTime.Add(time.Duration(rng.Int64N(int64(window) + 1))),
		}
		if err = s.repo.Submission().Create(ctx, submission); err != nil {
			if repositories.IsDuplicateError(err) {
				continue
			}
			return 0, err
		}
		err = attempts.ApplyScore(ctx, attempt.ID, repositories.ScoreDelta{
			Score:           result.Score,
			PaperMaxScore:   paper.MaxScore(),
			SubjectCode:     question.SubjectCode,
			SubjectMaxScore: subjectMax[question.SubjectCode],
		})
		if err != nil {
			return 0, err
		}
		submitted++
	}

	if _, err = attempts.MarkCompleted(ctx, attempt.ID, exam.EndTime); err != nil {
		return 0, err
	}
	return submitted, nil
}

// randomChoice picks one option for a single-correct question and a
// non-empty random subset for a multiple-correct one.
func randomChoice(q *models.Question, rng *rand.Rand) []string {
	if len(q.Options) == 0 {
		return nil
	}
	switch q.Type {
	case models.QuestionMultipleCorrect:
		var chosen []string
		for _, opt := range q.Options {
			if rng.IntN(2) == 1 {
				chosen = append(chosen, opt.Code)
			}
		}
		if len(chosen) == 0 {
			chosen = append(chosen, q.Options[rng.IntN(len(q.Options))].Code)
		}
		return chosen
	default:
		return []string{q.Options[rng.IntN(len(q.Options))].Code}
	}
}
