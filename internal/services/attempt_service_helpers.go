package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
)

func (s *attemptService) startPractice(ctx context.Context, paper *models.Paper, userID string, now time.Time) (*models.Attempt, error) {
	attempt := &models.Attempt{
		PaperID:       paper.ID,
		UserID:        userID,
		Type:          models.AttemptPractice,
		Status:        models.AttemptInProgress,
		StartedOn:     &now,
		MaxTotalScore: paper.MaxScore(),
	}
	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		return nil, fmt.Errorf("failed to create practice attempt: %w", err)
	}

	s.publish(ctx, events.EventAttemptStarted, attemptEvent(attempt))
	return attempt, nil
}

func (s *attemptService) startCompetitive(ctx context.Context, examID uint, paper *models.Paper, userID string, now time.Time) (*models.Attempt, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	if exam.PaperID != paper.ID {
		return nil, ErrPaperMismatch
	}
	if !exam.WindowContains(now) {
		return nil, ErrExamWindowClosed
	}

	attempt, err := s.repo.Attempt().GetByExamAndUser(ctx, examID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	switch attempt.Status {
	case models.AttemptInProgress:
		s.logger.Info("Resuming attempt", "attempt_id", attempt.ID, "exam_id", examID)
		return attempt, nil
	case models.AttemptNotStarted:
	default:
		return nil, ErrAttemptNotInProgress
	}

	changed, err := s.repo.Attempt().MarkStarted(ctx, attempt.ID, now, paper.MaxScore())
	if err != nil {
		return nil, fmt.Errorf("failed to start attempt: %w", err)
	}

	attempt, err = s.repo.Attempt().GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotInProgress
	}
	if changed {
		s.publish(ctx, events.EventAttemptStarted, attemptEvent(attempt))
	}
	return attempt, nil
}

func (s *attemptService) getOwnedAttempt(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error) {
	attempt, err := s.repo.Attempt().GetByIDForUser(ctx, attemptID, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	return attempt, nil
}

// checkSubmissionWindow applies the exam window to competitive attempts and
// the paper duration, counted from the start, to practice attempts.
func (s *attemptService) checkSubmissionWindow(ctx context.Context, attempt *models.Attempt, paper *models.Paper, now time.Time) error {
	switch attempt.Type {
	case models.AttemptCompetitive:
		if attempt.ExamID == nil {
			return ErrExamNotFound
		}
		exam, err := s.repo.Exam().GetByID(ctx, *attempt.ExamID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrExamNotFound
			}
			return fmt.Errorf("failed to get exam: %w", err)
		}
		if !exam.WindowContains(now) {
			return ErrExamWindowClosed
		}
		return nil
	case models.AttemptPractice:
		if attempt.StartedOn == nil || now.Sub(*attempt.StartedOn) > paper.Duration() {
			return ErrPracticeWindowElapsed
		}
		return nil
	default:
		return fmt.Errorf("unsupported attempt type %q", attempt.Type)
	}
}

// resolveQuestion prefers the copy bound to the paper and falls back to the
// catalog so an unknown question and a foreign one are told apart.
func (s *attemptService) resolveQuestion(ctx context.Context, paper *models.Paper, questionID uint) (*models.Question, error) {
	if q, ok := paper.QuestionByID(questionID); ok {
		return q, nil
	}

	q, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	return q, nil
}

func (s *attemptService) applyAggregates(ctx context.Context, attempt *models.Attempt, paper *models.Paper, question *models.Question, result scoring.Result) {
	delta := repositories.ScoreDelta{
		Score:           result.Score,
		PaperMaxScore:   paper.MaxScore(),
		SubjectCode:     question.SubjectCode,
		SubjectMaxScore: paper.SubjectMaxScores()[question.SubjectCode],
	}
	if err := s.repo.Attempt().ApplyScore(ctx, attempt.ID, delta); err != nil {
		s.logger.Warn("Failed to update attempt aggregates",
			"attempt_id", attempt.ID,
			"question_id", question.ID,
			"error", err)
	}
}

func (s *attemptService) publish(ctx context.Context, eventType events.EventType, data interface{}) {
	publishEvent(ctx, s.publisher, s.logger, s.clock(), eventType, data)
}

func attemptEvent(a *models.Attempt) events.AttemptEvent {
	return events.AttemptEvent{
		AttemptID: a.ID,
		ExamID:    a.ExamID,
		PaperID:   a.PaperID,
		UserID:    a.UserID,
		Status:    string(a.Status),
	}
}
