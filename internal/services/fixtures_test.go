package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

var (
	examStart = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	examEnd   = examStart.Add(2 * time.Hour)
)

type fixture struct {
	ctx       context.Context
	store     *memory.Store
	publisher *events.MockEventPublisher
	validator *validator.Validator

	mu  sync.RWMutex
	now time.Time

	paper *models.Paper
	exam  *models.Exam
}

// newFixture seeds a three-question paper (maths 4, science 10, history 5
// mandatory) and an upcoming exam over it.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:       context.Background(),
		store:     memory.NewStore(),
		publisher: events.NewMockEventPublisher(utils.NewDiscardLogger()),
		validator: validator.New(),
		now:       examStart.Add(-time.Hour),
	}

	maths := seedQuestion(t, f.store, "M1", models.QuestionSingleCorrect, "maths",
		models.QuestionOption{Code: "m1a", Correct: true, Weight: 100},
		models.QuestionOption{Code: "m1b"})
	science := seedQuestion(t, f.store, "S1", models.QuestionMultipleCorrect, "science",
		models.QuestionOption{Code: "s1a", Correct: true, Weight: 60},
		models.QuestionOption{Code: "s1b", Correct: true, Weight: 40},
		models.QuestionOption{Code: "s1c"})
	history := seedQuestion(t, f.store, "H1", models.QuestionSingleCorrect, "history",
		models.QuestionOption{Code: "h1a", Correct: true, Weight: 100},
		models.QuestionOption{Code: "h1b"})

	f.paper = &models.Paper{
		Code:            "P-1",
		Name:            "Mixed paper",
		Type:            models.PaperReal,
		DurationMinutes: 30,
		Questions: []models.PaperQuestion{
			{QuestionID: maths.ID, Order: 1, PositiveScore: 4, NegativeScore: 1},
			{QuestionID: science.ID, Order: 2, PositiveScore: 10, NegativeScore: 2},
			{QuestionID: history.ID, Order: 3, PositiveScore: 5, Mandatory: true},
		},
	}
	require.NoError(t, f.store.Paper().Create(f.ctx, f.paper))

	paper, err := f.store.Paper().GetByID(f.ctx, f.paper.ID)
	require.NoError(t, err)
	f.paper = paper

	f.exam = &models.Exam{
		PaperID:   f.paper.ID,
		Name:      "Spring round",
		Status:    models.ExamUpcoming,
		StartTime: examStart,
		EndTime:   examEnd,
	}
	require.NoError(t, f.store.Exam().Create(f.ctx, f.exam))

	return f
}

func seedQuestion(t *testing.T, store *memory.Store, code string, qt models.QuestionType, subject models.SubjectCode, options ...models.QuestionOption) *models.Question {
	t.Helper()
	for i := range options {
		options[i].Order = i
	}
	q := &models.Question{Code: code, Type: qt, SubjectCode: subject, Statement: code, Options: options}
	require.NoError(t, store.Question().Create(context.Background(), q))
	return q
}

func (f *fixture) clock() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.now
}

func (f *fixture) setNow(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fixture) questionID(t *testing.T, code string) uint {
	t.Helper()
	rule, ok := f.paper.RuleFor(code)
	require.True(t, ok, "question %s not in paper", code)
	return rule.QuestionID
}

func (f *fixture) attempts(repo repositories.Repository) AttemptService {
	if repo == nil {
		repo = f.store
	}
	return NewAttemptService(repo, f.publisher, f.validator, f.clock, utils.NewDiscardLogger())
}

func (f *fixture) conclusion(cfg ConclusionConfig) ConclusionService {
	return NewConclusionService(f.store, f.publisher, cfg, f.clock, utils.NewDiscardLogger())
}

// startCompetitive enrolls and starts userID inside the exam window.
func (f *fixture) startCompetitive(t *testing.T, svc AttemptService, userID string) *models.Attempt {
	t.Helper()
	f.setNow(examStart.Add(-30 * time.Minute))
	_, err := svc.Enroll(f.ctx, f.exam.ID, userID)
	require.NoError(t, err)

	f.setNow(examStart.Add(5 * time.Minute))
	attempt, err := svc.Start(f.ctx, &StartAttemptRequest{PaperID: f.paper.ID, ExamID: &f.exam.ID}, userID)
	require.NoError(t, err)
	return attempt
}

// seedRanked stores finished competitive attempts with the given totals.
func (f *fixture) seedRanked(t *testing.T, scores ...int) []*models.Attempt {
	t.Helper()
	out := make([]*models.Attempt, 0, len(scores))
	for i, score := range scores {
		attempt := &models.Attempt{
			PaperID:    f.paper.ID,
			ExamID:     &f.exam.ID,
			UserID:     string(rune('a' + i)),
			Type:       models.AttemptCompetitive,
			Status:     models.AttemptCompleted,
			TotalScore: score,
		}
		require.NoError(t, f.store.Attempt().Create(f.ctx, attempt))
		out = append(out, attempt)
	}
	return out
}

func (f *fixture) reload(t *testing.T, id uint) *models.Attempt {
	t.Helper()
	attempt, err := f.store.Attempt().GetByID(f.ctx, id)
	require.NoError(t, err)
	return attempt
}

// failingScores drops every running-aggregate write.
type failingScores struct {
	repositories.AttemptRepository
}

func (failingScores) ApplyScore(context.Context, uint, repositories.ScoreDelta) error {
	return errors.New("connection reset by peer")
}

type failingAggregates struct {
	repositories.Repository
}

func (r failingAggregates) Attempt() repositories.AttemptRepository {
	return failingScores{r.Repository.Attempt()}
}

type mockJobs struct {
	mock.Mock
}

func (m *mockJobs) ScheduleAt(_ context.Context, runAt time.Time, job scheduler.Job) error {
	return m.Called(runAt, job).Error(0)
}

func (m *mockJobs) EnqueueNow(_ context.Context, job scheduler.Job) error {
	return m.Called(job).Error(0)
}

type fakeLocker struct {
	mu   sync.Mutex
	held map[uint]bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[uint]bool)}
}

func (l *fakeLocker) Acquire(_ context.Context, examID uint) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[examID] {
		return nil, false, nil
	}
	l.held[examID] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, examID)
		return nil
	}, true, nil
}
