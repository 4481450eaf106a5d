package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type attemptService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	validator *validator.Validator
	clock     utils.Clock
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewAttemptService(repo repositories.Repository, publisher events.EventPublisher, v *validator.Validator, clock utils.Clock, logger *slog.Logger) AttemptService {
	return &attemptService{
		repo:      repo,
		publisher: publisher,
		validator: v,
		clock:     clock,
		logger:    logger,
		ops:       NewServiceLogger(logger, "attempts"),
	}
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Enroll(ctx context.Context, examID uint, userID string) (attempt *models.Attempt, err error) {
	defer s.ops.Track(ctx, "enroll", userID, examID, "exam")(&err)

	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	_, err = s.repo.Attempt().GetByExamAndUser(ctx, examID, userID)
	switch {
	case err == nil:
		return nil, ErrAlreadyEnrolled
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to check enrollment: %w", err)
	}

	now := s.clock()
	attempt = &models.Attempt{
		PaperID:    exam.PaperID,
		ExamID:     &exam.ID,
		UserID:     userID,
		Type:       models.AttemptCompetitive,
		Status:     models.AttemptNotStarted,
		EnrolledOn: &now,
	}
	if err = s.repo.Attempt().Create(ctx, attempt); err != nil {
		// lost a concurrent enrollment race
		if repositories.IsDuplicateError(err) {
			return nil, ErrAlreadyEnrolled
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	if ierr := s.repo.Exam().IncrementEnrolled(ctx, examID); ierr != nil {
		s.logger.Warn("Failed to bump enrolled count", "exam_id", examID, "error", ierr)
	}
	s.publish(ctx, events.EventAttemptEnrolled, attemptEvent(attempt))

	return attempt, nil
}

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, userID string) (attempt *models.Attempt, err error) {
	defer s.ops.Track(ctx, "start", userID, req.PaperID, "paper")(&err)

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	paper, err := s.repo.Paper().GetByID(ctx, req.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	now := s.clock()
	if req.ExamID == nil {
		return s.startPractice(ctx, paper, userID, now)
	}
	return s.startCompetitive(ctx, *req.ExamID, paper, userID, now)
}

func (s *attemptService) Submit(ctx context.Context, req *SubmitAnswerRequest, userID string) (submission *models.Submission, err error) {
	defer s.ops.Track(ctx, "submit", userID, req.AttemptID, "attempt")(&err)

	if err = s.validator.Validate(req); err != nil {
		return nil, err
	}

	// One clock reading for the window check and the submission timestamp.
	now := s.clock()

	attempt, err := s.getOwnedAttempt(ctx, req.AttemptID, userID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != models.AttemptInProgress {
		return nil, ErrAttemptNotInProgress
	}

	paper, err := s.repo.Paper().GetByID(ctx, attempt.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	if err = s.checkSubmissionWindow(ctx, attempt, paper, now); err != nil {
		return nil, err
	}

	question, err := s.resolveQuestion(ctx, paper, req.QuestionID)
	if err != nil {
		return nil, err
	}

	result, err := scoring.ScoreInPaper(paper, question, req.OptionsChosen)
	if err != nil {
		return nil, err
	}

	submission = &models.Submission{
		AttemptID:     attempt.ID,
		QuestionID:    question.ID,
		UserID:        userID,
		PaperID:       paper.ID,
		SubjectCode:   question.SubjectCode,
		OptionsChosen: append([]string{}, req.OptionsChosen...),
		Score:         result.Score,
		MaxScore:      result.MaxScore,
		SubmittedAt:   now,
	}
	if err = s.repo.Submission().Create(ctx, submission); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrDuplicateSubmission
		}
		return nil, fmt.Errorf("failed to save submission: %w", err)
	}

	// The submission is the record of truth; aggregates are repaired at
	// conclusion if this write is lost.
	s.applyAggregates(ctx, attempt, paper, question, result)
	s.publish(ctx, events.EventAttemptSubmitted, events.SubmissionEvent{
		SubmissionID: submission.ID,
		AttemptID:    attempt.ID,
		QuestionID:   question.ID,
		UserID:       userID,
		SubjectCode:  string(question.SubjectCode),
		Score:        result.Score,
		MaxScore:     result.MaxScore,
	})

	return submission, nil
}

func (s *attemptService) End(ctx context.Context, attemptID uint, userID string) (attempt *models.Attempt, err error) {
	defer s.ops.Track(ctx, "end", userID, attemptID, "attempt")(&err)

	attempt, err = s.getOwnedAttempt(ctx, attemptID, userID)
	if err != nil {
		return nil, err
	}

	switch attempt.Status {
	case models.AttemptCompleted:
		return attempt, nil
	case models.AttemptInProgress:
	default:
		return nil, ErrAttemptNotInProgress
	}

	now := s.clock()
	changed, err := s.repo.Attempt().MarkCompleted(ctx, attempt.ID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to complete attempt: %w", err)
	}

	attempt, err = s.repo.Attempt().GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload attempt: %w", err)
	}
	if attempt.Status != models.AttemptCompleted {
		return nil, ErrAttemptNotInProgress
	}
	if changed {
		s.publish(ctx, events.EventAttemptCompleted, attemptEvent(attempt))
	}
	return attempt, nil
}

func (s *attemptService) Get(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error) {
	return s.getOwnedAttempt(ctx, attemptID, userID)
}

// NextQuestion walks the paper in order. An empty or unknown current code
// yields the first question; after the last one the response is done.
func (s *attemptService) NextQuestion(ctx context.Context, req *NextQuestionRequest) (*NextQuestionResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	paper, err := s.repo.Paper().GetByID(ctx, req.PaperID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrPaperNotFound
		}
		return nil, fmt.Errorf("failed to get paper: %w", err)
	}

	ordered := paper.OrderedQuestions()
	next := 0
	if req.CurrentCode != "" {
		for i, pq := range ordered {
			if pq.Question.Code == req.CurrentCode {
				next = i + 1
				break
			}
		}
	}

	if next >= len(ordered) {
		return &NextQuestionResponse{Done: true, Total: len(ordered)}, nil
	}
	return &NextQuestionResponse{
		Position: next + 1,
		Total:    len(ordered),
		Question: toPublicQuestion(ordered[next]),
	}, nil
}
