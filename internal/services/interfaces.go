package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
)

// AttemptService drives one participant's attempt: enroll, start, submit
// answers and end.
type AttemptService interface {
	Enroll(ctx context.Context, examID uint, userID string) (*models.Attempt, error)
	Start(ctx context.Context, req *StartAttemptRequest, userID string) (*models.Attempt, error)
	Submit(ctx context.Context, req *SubmitAnswerRequest, userID string) (*models.Submission, error)
	End(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error)
	Get(ctx context.Context, attemptID uint, userID string) (*models.Attempt, error)
	NextQuestion(ctx context.Context, req *NextQuestionRequest) (*NextQuestionResponse, error)
}

// ConclusionService computes final ranks and percentiles for a closed exam.
type ConclusionService interface {
	Conclude(ctx context.Context, examID uint) (*ConclusionSummary, error)
}

// ExamService owns exam status transitions and their scheduled jobs.
type ExamService interface {
	Create(ctx context.Context, req *CreateExamRequest) (*models.Exam, error)
	Get(ctx context.Context, examID uint) (*models.Exam, error)
	MarkStarted(ctx context.Context, examID uint) error
	MarkEnded(ctx context.Context, examID uint) error
	ScheduleJobs(ctx context.Context, exam *models.Exam) error
	RequestConclusion(ctx context.Context, examID uint) error
	ReconcilePending(ctx context.Context) (*ReconcileSummary, error)
}

// CatalogService stores questions and papers after checking their answer keys.
type CatalogService interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	CreatePaper(ctx context.Context, p *models.Paper) error
}

// ResultService exposes concluded exam results.
type ResultService interface {
	List(ctx context.Context, examID uint, filters repositories.ResultFilters) (*ResultPage, error)
	ExportXLSX(ctx context.Context, examID uint, w io.Writer) error
}

// SimulationService fills an exam with synthetic attempts and concludes it.
type SimulationService interface {
	Run(ctx context.Context, examID uint, cfg SimulationConfig) (*SimulationSummary, error)
}

// JobScheduler is the scheduling contract the exam lifecycle relies on.
type JobScheduler interface {
	ScheduleAt(ctx context.Context, runAt time.Time, job scheduler.Job) error
	EnqueueNow(ctx context.Context, job scheduler.Job) error
}

// Locker serializes conclusion runs per exam.
type Locker interface {
	Acquire(ctx context.Context, examID uint) (release func(context.Context) error, acquired bool, err error)
}
