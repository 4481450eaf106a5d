package services

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/datatypes"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	jobs      JobScheduler
	publisher events.EventPublisher
	validator *validator.Validator
	clock     utils.Clock
	logger    *slog.Logger
	ops       *ServiceLogger
}

func NewExamService(repo repositories.Repository, jobs JobScheduler, publisher events.EventPublisher, v *validator.Validator, clock utils.Clock, logger *slog.Logger) ExamService {
	return &examService{
		repo:      repo,
		jobs:      jobs,
		publisher: publisher,
		validator: v,
		clock:     clock,
		logger:    logger,
		ops:       NewServiceLogger(logger, "exams"),
	}
}

func (s *examService) Create(ctx context.Context, req *CreateExamRequest) (exam *models.Exam, err error) {
	defer s.ops.Track(ctx, "create", "", req.PaperID, "paper")(&err)

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

	exam = &models.Exam{
		PaperID:   paper.ID,
		Name:      req.Name,
		Date:      datatypes.Date(req.StartTime),
		Status:    models.ExamUpcoming,
		StartTime: req.StartTime.UTC(),
		EndTime:   req.EndTime.UTC(),
		MaxScore:  paper.MaxScore(),
	}
	if err = s.repo.Exam().Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	// A missed schedule is recovered by ReconcilePending on the next start.
	if serr := s.ScheduleJobs(ctx, exam); serr != nil {
		s.logger.Warn("Failed to schedule exam jobs", "exam_id", exam.ID, "error", serr)
	}
	return exam, nil
}

func (s *examService) Get(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}

// ===== SCHEDULED TRANSITIONS =====
// Jobs may run late or more than once, so each handler re-checks the status
// and the clock before acting and is a no-op otherwise.

func (s *examService) MarkStarted(ctx context.Context, examID uint) error {
	exam, err := s.loadForTransition(ctx, examID)
	if err != nil || exam == nil {
		return err
	}

	now := s.clock()
	if exam.Status != models.ExamUpcoming || now.Before(exam.StartTime) || !now.Before(exam.EndTime) {
		s.logger.Debug("Skipping exam start", "exam_id", examID, "status", exam.Status)
		return nil
	}

	changed, err := s.repo.Exam().TransitionStatus(ctx, examID, models.ExamUpcoming, models.ExamOngoing)
	if err != nil {
		return fmt.Errorf("failed to start exam: %w", err)
	}
	if changed {
		s.logger.Info("Exam started", "exam_id", examID)
		publishEvent(ctx, s.publisher, s.logger, now, events.EventExamStarted,
			events.ExamStatusEvent{ExamID: examID, Status: string(models.ExamOngoing)})
	}
	return nil
}

// MarkEnded closes the attempts still running once the end time has passed,
// hands the exam to the conclusion pipeline and only then marks it
// completed. A failed step leaves the exam open, so a retried job redoes
// every step.
func (s *examService) MarkEnded(ctx context.Context, examID uint) error {
	exam, err := s.loadForTransition(ctx, examID)
	if err != nil || exam == nil {
		return err
	}

	now := s.clock()
	if exam.Status == models.ExamCompleted || now.Before(exam.EndTime) {
		s.logger.Debug("Skipping exam end", "exam_id", examID, "status", exam.Status)
		return nil
	}

	closed, err := s.repo.Attempt().CompleteInProgress(ctx, examID, exam.EndTime)
	if err != nil {
		return fmt.Errorf("failed to close running attempts: %w", err)
	}

	if err = s.jobs.EnqueueNow(ctx, scheduler.Job{Kind: scheduler.JobConcludeExam, ExamID: examID}); err != nil {
		return fmt.Errorf("failed to queue conclusion: %w", err)
	}

	changed, err := s.repo.Exam().TransitionStatus(ctx, examID, exam.Status, models.ExamCompleted)
	if err != nil {
		return fmt.Errorf("failed to end exam: %w", err)
	}
	if changed {
		s.logger.Info("Exam ended", "exam_id", examID, "attempts_closed", closed)
		publishEvent(ctx, s.publisher, s.logger, now, events.EventExamEnded,
			events.ExamStatusEvent{ExamID: examID, Status: string(models.ExamCompleted)})
	}
	return nil
}

func (s *examService) ScheduleJobs(ctx context.Context, exam *models.Exam) error {
	if exam.Status == models.ExamCompleted {
		return nil
	}
	if exam.Status == models.ExamUpcoming {
		job := scheduler.Job{Kind: scheduler.JobMarkExamStarted, ExamID: exam.ID}
		if err := s.jobs.ScheduleAt(ctx, exam.StartTime, job); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", job, err)
		}
	}
	job := scheduler.Job{Kind: scheduler.JobMarkExamEnded, ExamID: exam.ID}
	if err := s.jobs.ScheduleAt(ctx, exam.EndTime, job); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", job, err)
	}
	return nil
}

// RequestConclusion queues the conclusion pipeline for an exam whose window
// has closed.
func (s *examService) RequestConclusion(ctx context.Context, examID uint) error {
	exam, err := s.Get(ctx, examID)
	if err != nil {
		return err
	}
	if s.clock().Before(exam.EndTime) {
		return ErrExamWindowClosed
	}
	return s.jobs.EnqueueNow(ctx, scheduler.Job{Kind: scheduler.JobConcludeExam, ExamID: examID})
}

// ReconcilePending re-registers the transitions of exams that have not
// finished and re-queues conclusions that never landed.
func (s *examService) ReconcilePending(ctx context.Context) (summary *ReconcileSummary, err error) {
	defer s.ops.Track(ctx, "reconcile_pending", "", 0, "exam")(&err)

	summary = &ReconcileSummary{}

	pending, err := s.repo.Exam().ListByStatus(ctx, models.ExamUpcoming, models.ExamOngoing)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending exams: %w", err)
	}
	for _, exam := range pending {
		if err = s.ScheduleJobs(ctx, exam); err != nil {
			return summary, err
		}
		summary.Rescheduled++
	}

	unconcluded, err := s.repo.Exam().ListUnconcluded(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to list unconcluded exams: %w", err)
	}
	for _, exam := range unconcluded {
		job := scheduler.Job{Kind: scheduler.JobConcludeExam, ExamID: exam.ID}
		if err = s.jobs.EnqueueNow(ctx, job); err != nil {
			return summary, fmt.Errorf("failed to enqueue %s: %w", job, err)
		}
		summary.Concluding++
	}

	return summary, nil
}

// loadForTransition returns nil without error when the exam is gone, since
// a job for a deleted exam has nothing left to do.
func (s *examService) loadForTransition(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Warn("Exam not found for scheduled transition", "exam_id", examID)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}
