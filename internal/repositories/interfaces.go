package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Repository groups the per-entity stores behind one handle.
type Repository interface {
	Question() QuestionRepository
	Paper() PaperRepository
	Exam() ExamRepository
	Attempt() AttemptRepository
	Submission() SubmissionRepository
}

type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	GetByCode(ctx context.Context, code string) (*models.Question, error)
}

// PaperRepository returns papers with their marking rules, bound questions
// and options loaded.
type PaperRepository interface {
	Create(ctx context.Context, paper *models.Paper) error
	GetByID(ctx context.Context, id uint) (*models.Paper, error)
}

type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	GetByIDWithPaper(ctx context.Context, id uint) (*models.Exam, error)
	ListByStatus(ctx context.Context, statuses ...models.ExamStatus) ([]*models.Exam, error)
	// ListUnconcluded returns completed exams whose conclusion never landed.
	ListUnconcluded(ctx context.Context) ([]*models.Exam, error)

	// TransitionStatus moves the exam from one status to another only when it
	// is still in the expected status. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id uint, from, to models.ExamStatus) (bool, error)
	IncrementEnrolled(ctx context.Context, id uint) error
	SaveConclusion(ctx context.Context, id uint, conclusion ExamConclusion) error
}

type AttemptRepository interface {
	// Create fails with ErrDuplicate when the user already holds an attempt
	// for the exam.
	Create(ctx context.Context, attempt *models.Attempt) error
	GetByID(ctx context.Context, id uint) (*models.Attempt, error)
	GetByIDForUser(ctx context.Context, id uint, userID string) (*models.Attempt, error)
	GetByExamAndUser(ctx context.Context, examID uint, userID string) (*models.Attempt, error)

	// MarkStarted and MarkCompleted are conditional transitions
	// (not_started → in_progress and in_progress → completed). They report
	// whether the row changed.
	MarkStarted(ctx context.Context, id uint, startedOn time.Time, maxTotalScore int) (bool, error)
	MarkCompleted(ctx context.Context, id uint, endedOn time.Time) (bool, error)
	CompleteInProgress(ctx context.Context, examID uint, endedOn time.Time) (int64, error)

	// ApplyScore adds a scored submission to the running totals with atomic
	// increments.
	ApplyScore(ctx context.Context, id uint, delta ScoreDelta) error

	CountActive(ctx context.Context, examID uint) (int64, error)
	CountActiveWithSubject(ctx context.Context, examID uint, subject models.SubjectCode) (int64, error)

	// StreamScores yields active attempts ordered by total score descending
	// without materializing the whole set.
	StreamScores(ctx context.Context, examID uint, fn func(RankedScore) error) error
	StreamSubjectScores(ctx context.Context, examID uint, subject models.SubjectCode, fn func(RankedScore) error) error

	ApplyRanks(ctx context.Context, updates []RankUpdate) error
	ApplySubjectRanks(ctx context.Context, subject models.SubjectCode, updates []RankUpdate) error

	// ReconcileScores recomputes running totals and subject buckets of the
	// exam's active attempts from their submissions.
	ReconcileScores(ctx context.Context, examID uint, subjectMax map[models.SubjectCode]int) error

	// ListRanked pages through the exam's active attempts in rank order.
	ListRanked(ctx context.Context, examID uint, filters ResultFilters) ([]*models.Attempt, int64, error)
}

type SubmissionRepository interface {
	// Create fails with ErrDuplicate when the (attempt, question, user)
	// triple has already been recorded.
	Create(ctx context.Context, submission *models.Submission) error
	ListByAttempt(ctx context.Context, attemptID uint) ([]*models.Submission, error)
}

type ExamConclusion struct {
	AttemptedCount int
	HighestScore   int
	LowestScore    int
	MaxScore       int
	ConcludedOn    time.Time
}

type ScoreDelta struct {
	Score           int
	PaperMaxScore   int
	SubjectCode     models.SubjectCode
	SubjectMaxScore int
}

type RankedScore struct {
	AttemptID uint
	Score     int
}

// MaxRankUpdatesPerBatch keeps a batched rank write under PostgreSQL's
// 65535 bind parameter limit; each update binds three values.
const MaxRankUpdatesPerBatch = 20000

type RankUpdate struct {
	AttemptID  uint
	Rank       int
	Percentile float64
}

type ResultFilters struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
