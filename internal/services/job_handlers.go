package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/SAP-F-2025/exam-service/internal/scheduler"
)

// lockedConclusion runs the pipeline only while holding the exam's lock so
// two workers never rank the same exam at once.
type lockedConclusion struct {
	inner  ConclusionService
	locker Locker
	logger *slog.Logger
}

func NewLockedConclusionService(inner ConclusionService, locker Locker, logger *slog.Logger) ConclusionService {
	return &lockedConclusion{inner: inner, locker: locker, logger: logger}
}

func (l *lockedConclusion) Conclude(ctx context.Context, examID uint) (*ConclusionSummary, error) {
	release, acquired, err := l.locker.Acquire(ctx, examID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrConclusionRunning
	}
	defer func() {
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			l.logger.Warn("Failed to release exam lock", "exam_id", examID, "error", rerr)
		}
	}()

	return l.inner.Conclude(ctx, examID)
}

// JobHandlers binds queued jobs to the exam lifecycle and the conclusion
// pipeline.
type JobHandlers struct {
	exams      ExamService
	conclusion ConclusionService
	logger     *slog.Logger
}

func NewJobHandlers(exams ExamService, conclusion ConclusionService, logger *slog.Logger) *JobHandlers {
	return &JobHandlers{
		exams:      exams,
		conclusion: conclusion,
		logger:     logger,
	}
}

func (h *JobHandlers) Register(q *scheduler.Queue) {
	q.Handle(scheduler.JobMarkExamStarted, h.markStarted)
	q.Handle(scheduler.JobMarkExamEnded, h.markEnded)
	q.Handle(scheduler.JobConcludeExam, h.conclude)
}

func (h *JobHandlers) markStarted(ctx context.Context, job scheduler.Job) error {
	return h.exams.MarkStarted(ctx, job.ExamID)
}

func (h *JobHandlers) markEnded(ctx context.Context, job scheduler.Job) error {
	return h.exams.MarkEnded(ctx, job.ExamID)
}

func (h *JobHandlers) conclude(ctx context.Context, job scheduler.Job) error {
	_, err := h.conclusion.Conclude(ctx, job.ExamID)
	switch {
	case errors.Is(err, ErrConclusionRunning):
		h.logger.Info("Conclusion already running", "exam_id", job.ExamID)
		return nil
	case IsNotFound(err):
		// Nothing to retry for an exam or paper that no longer exists.
		h.logger.Error("Dropping conclusion job", "exam_id", job.ExamID, "error", err)
		return nil
	}
	return err
}
