// Package memory is an in-process implementation of the repositories. It
// enforces the same uniqueness and conditional-update rules as the
// PostgreSQL store and is used for tests and local simulation.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type Store struct {
	mu sync.RWMutex

	nextID      uint
	questions   map[uint]*models.Question
	papers      map[uint]*models.Paper
	exams       map[uint]*models.Exam
	attempts    map[uint]*models.Attempt
	submissions map[uint]*models.Submission
}

func NewStore() *Store {
	return &Store{
		questions:   make(map[uint]*models.Question),
		papers:      make(map[uint]*models.Paper),
		exams:       make(map[uint]*models.Exam),
		attempts:    make(map[uint]*models.Attempt),
		submissions: make(map[uint]*models.Submission),
	}
}

func (s *Store) id() uint {
	s.nextID++
	return s.nextID
}

// clone deep-copies through JSON so callers never share state with the store.
func clone[T any](v *T) *T {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		panic(err)
	}
	return &out
}

func (s *Store) Question() repositories.QuestionRepository     { return questionStore{s} }
func (s *Store) Paper() repositories.PaperRepository           { return paperStore{s} }
func (s *Store) Exam() repositories.ExamRepository             { return examStore{s} }
func (s *Store) Attempt() repositories.AttemptRepository       { return attemptStore{s} }
func (s *Store) Submission() repositories.SubmissionRepository { return submissionStore{s} }

type questionStore struct{ s *Store }

func (q questionStore) Create(_ context.Context, question *models.Question) error {
	q.s.mu.Lock()
	defer q.s.mu.Unlock()

	for _, existing := range q.s.questions {
		if existing.Code == question.Code {
			return repositories.ErrDuplicate
		}
	}
	question.ID = q.s.id()
	for i := range question.Options {
		question.Options[i].ID = q.s.id()
		question.Options[i].QuestionID = question.ID
	}
	q.s.questions[question.ID] = clone(question)
	return nil
}

func (q questionStore) GetByID(_ context.Context, id uint) (*models.Question, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()

	question, ok := q.s.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clone(question), nil
}

func (q questionStore) GetByCode(_ context.Context, code string) (*models.Question, error) {
	q.s.mu.RLock()
	defer q.s.mu.RUnlock()

	for _, question := range q.s.questions {
		if question.Code == code {
			return clone(question), nil
		}
	}
	return nil, repositories.ErrNotFound
}

type paperStore struct{ s *Store }

func (p paperStore) Create(_ context.Context, paper *models.Paper) error {
	p.s.mu.Lock()
	defer p.s.mu.Unlock()

	for _, existing := range p.s.papers {
		if existing.Code == paper.Code {
			return repositories.ErrDuplicate
		}
	}
	paper.ID = p.s.id()
	for i := range paper.Questions {
		paper.Questions[i].ID = p.s.id()
		paper.Questions[i].PaperID = paper.ID
	}
	p.s.papers[paper.ID] = clone(paper)
	return nil
}

// GetByID binds the current version of every question, as a join would.
func (p paperStore) GetByID(_ context.Context, id uint) (*models.Paper, error) {
	p.s.mu.RLock()
	defer p.s.mu.RUnlock()

	paper, ok := p.s.papers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := clone(paper)
	for i := range out.Questions {
		if q, ok := p.s.questions[out.Questions[i].QuestionID]; ok {
			out.Questions[i].Question = *clone(q)
		}
	}
	sort.SliceStable(out.Questions, func(i, j int) bool { return out.Questions[i].Order < out.Questions[j].Order })
	return out, nil
}

type examStore struct{ s *Store }

func (e examStore) Create(_ context.Context, exam *models.Exam) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	exam.ID = e.s.id()
	if exam.Status == "" {
		exam.Status = models.ExamUpcoming
	}
	stored := clone(exam)
	stored.Paper = nil
	e.s.exams[exam.ID] = stored
	return nil
}

func (e examStore) GetByID(_ context.Context, id uint) (*models.Exam, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	exam, ok := e.s.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clone(exam), nil
}

func (e examStore) GetByIDWithPaper(ctx context.Context, id uint) (*models.Exam, error) {
	exam, err := e.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	paper, err := paperStore(e).GetByID(ctx, exam.PaperID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, err
	}
	exam.Paper = paper
	return exam, nil
}

func (e examStore) ListByStatus(_ context.Context, statuses ...models.ExamStatus) ([]*models.Exam, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	var out []*models.Exam
	for _, exam := range e.s.exams {
		for _, status := range statuses {
			if exam.Status == status {
				out = append(out, clone(exam))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (e examStore) ListUnconcluded(_ context.Context) ([]*models.Exam, error) {
	e.s.mu.RLock()
	defer e.s.mu.RUnlock()

	var out []*models.Exam
	for _, exam := range e.s.exams {
		if exam.Status == models.ExamCompleted && exam.ConcludedOn == nil {
			out = append(out, clone(exam))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (e examStore) TransitionStatus(_ context.Context, id uint, from, to models.ExamStatus) (bool, error) {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	exam, ok := e.s.exams[id]
	if !ok || exam.Status != from {
		return false, nil
	}
	exam.Status = to
	return true, nil
}

func (e examStore) IncrementEnrolled(_ context.Context, id uint) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	exam, ok := e.s.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	exam.EnrolledCount++
	return nil
}

func (e examStore) SaveConclusion(_ context.Context, id uint, c repositories.ExamConclusion) error {
	e.s.mu.Lock()
	defer e.s.mu.Unlock()

	exam, ok := e.s.exams[id]
	if !ok {
		return repositories.ErrNotFound
	}
	exam.AttemptedCount = c.AttemptedCount
	exam.HighestScore = c.HighestScore
	exam.LowestScore = c.LowestScore
	exam.MaxScore = c.MaxScore
	concludedOn := c.ConcludedOn
	exam.ConcludedOn = &concludedOn
	return nil
}

type submissionStore struct{ s *Store }

func (sub submissionStore) Create(_ context.Context, submission *models.Submission) error {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()

	for _, existing := range sub.s.submissions {
		if existing.AttemptID == submission.AttemptID &&
			existing.QuestionID == submission.QuestionID &&
			existing.UserID == submission.UserID {
			return repositories.ErrDuplicate
		}
	}
	submission.ID = sub.s.id()
	if submission.CreatedAt.IsZero() {
		submission.CreatedAt = time.Now().UTC()
	}
	sub.s.submissions[submission.ID] = clone(submission)
	return nil
}

func (sub submissionStore) ListByAttempt(_ context.Context, attemptID uint) ([]*models.Submission, error) {
	sub.s.mu.RLock()
	defer sub.s.mu.RUnlock()

	var out []*models.Submission
	for _, submission := range sub.s.submissions {
		if submission.AttemptID == attemptID {
			out = append(out, clone(submission))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubmittedAt.Before(out[j].SubmittedAt) })
	return out, nil
}

var _ repositories.Repository = (*Store)(nil)
