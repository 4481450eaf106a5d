package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/scheduler"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

func (f *fixture) exams(jobs JobScheduler) ExamService {
	return NewExamService(f.store, jobs, f.publisher, f.validator, f.clock, utils.NewDiscardLogger())
}

func startJob(id uint) scheduler.Job {
	return scheduler.Job{Kind: scheduler.JobMarkExamStarted, ExamID: id}
}

func endJob(id uint) scheduler.Job {
	return scheduler.Job{Kind: scheduler.JobMarkExamEnded, ExamID: id}
}

func concludeJob(id uint) scheduler.Job {
	return scheduler.Job{Kind: scheduler.JobConcludeExam, ExamID: id}
}

func TestCreateExamSchedulesTransitions(t *testing.T) {
	f := newFixture(t)
	jobs := &mockJobs{}
	jobs.On("ScheduleAt", examStart, mock.AnythingOfType("scheduler.Job")).Return(nil).Once()
	jobs.On("ScheduleAt", examEnd, mock.AnythingOfType("scheduler.Job")).Return(nil).Once()

	exam, err := f.exams(jobs).Create(f.ctx, &CreateExamRequest{
		PaperID: f.paper.ID, Name: "Autumn round", StartTime: examStart, EndTime: examEnd,
	})
	require.NoError(t, err)
	assert.Equal(t, models.ExamUpcoming, exam.Status)
	assert.Equal(t, 19, exam.MaxScore)

	jobs.AssertCalled(t, "ScheduleAt", examStart, startJob(exam.ID))
	jobs.AssertCalled(t, "ScheduleAt", examEnd, endJob(exam.ID))
	jobs.AssertExpectations(t)
}

func TestCreateExamValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.exams(&mockJobs{})

	_, err := svc.Create(f.ctx, &CreateExamRequest{PaperID: f.paper.ID, Name: "bad", StartTime: examEnd, EndTime: examStart})
	assert.True(t, IsValidation(err))

	_, err = svc.Create(f.ctx, &CreateExamRequest{PaperID: 404, Name: "none", StartTime: examStart, EndTime: examEnd})
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestMarkStartedGuards(t *testing.T) {
	f := newFixture(t)
	svc := f.exams(&mockJobs{})

	f.setNow(examStart.Add(-time.Second))
	require.NoError(t, svc.MarkStarted(f.ctx, f.exam.ID))
	exam, _ := svc.Get(f.ctx, f.exam.ID)
	assert.Equal(t, models.ExamUpcoming, exam.Status)

	f.setNow(examStart)
	require.NoError(t, svc.MarkStarted(f.ctx, f.exam.ID))
	require.NoError(t, svc.MarkStarted(f.ctx, f.exam.ID))
	exam, _ = svc.Get(f.ctx, f.exam.ID)
	assert.Equal(t, models.ExamOngoing, exam.Status)
	assert.Len(t, f.publisher.EventsOfType(events.EventExamStarted), 1)

	assert.NoError(t, svc.MarkStarted(f.ctx, 4040))
}

func TestMarkEndedClosesAttemptsAndQueuesConclusion(t *testing.T) {
	f := newFixture(t)
	jobs := &mockJobs{}
	jobs.On("EnqueueNow", concludeJob(f.exam.ID)).Return(nil).Once()
	svc := f.exams(jobs)
	attempts := f.attempts(nil)

	running := f.startCompetitive(t, attempts, "alice")
	finished := f.startCompetitive(t, attempts, "bob")
	_, err := attempts.End(f.ctx, finished.ID, "bob")
	require.NoError(t, err)

	f.setNow(examStart)
	require.NoError(t, svc.MarkStarted(f.ctx, f.exam.ID))

	f.setNow(examEnd.Add(-time.Second))
	require.NoError(t, svc.MarkEnded(f.ctx, f.exam.ID))
	jobs.AssertNotCalled(t, "EnqueueNow", concludeJob(f.exam.ID))

	f.setNow(examEnd.Add(3 * time.Minute))
	require.NoError(t, svc.MarkEnded(f.ctx, f.exam.ID))
	require.NoError(t, svc.MarkEnded(f.ctx, f.exam.ID))

	exam, _ := svc.Get(f.ctx, f.exam.ID)
	assert.Equal(t, models.ExamCompleted, exam.Status)

	closed := f.reload(t, running.ID)
	assert.Equal(t, models.AttemptCompleted, closed.Status)
	require.NotNil(t, closed.EndedOn)
	assert.True(t, closed.EndedOn.Equal(examEnd))

	untouched := f.reload(t, finished.ID)
	assert.True(t, untouched.EndedOn.Equal(examStart.Add(5*time.Minute)))

	jobs.AssertNumberOfCalls(t, "EnqueueNow", 1)
	assert.Len(t, f.publisher.EventsOfType(events.EventExamEnded), 1)
}

func TestMarkEndedRetriesAfterQueueFailure(t *testing.T) {
	f := newFixture(t)
	jobs := &mockJobs{}
	jobs.On("EnqueueNow", concludeJob(f.exam.ID)).Return(errors.New("broker down")).Once()
	jobs.On("EnqueueNow", concludeJob(f.exam.ID)).Return(nil).Once()
	svc := f.exams(jobs)
	attempts := f.attempts(nil)

	running := f.startCompetitive(t, attempts, "alice")
	f.setNow(examStart)
	require.NoError(t, svc.MarkStarted(f.ctx, f.exam.ID))

	f.setNow(examEnd.Add(time.Minute))
	err := svc.MarkEnded(f.ctx, f.exam.ID)
	require.Error(t, err)

	exam, _ := svc.Get(f.ctx, f.exam.ID)
	assert.Equal(t, models.ExamOngoing, exam.Status)
	assert.Empty(t, f.publisher.EventsOfType(events.EventExamEnded))
	assert.Equal(t, models.AttemptCompleted, f.reload(t, running.ID).Status)

	// the redelivered job finishes the transition
	require.NoError(t, svc.MarkEnded(f.ctx, f.exam.ID))

	exam, _ = svc.Get(f.ctx, f.exam.ID)
	assert.Equal(t, models.ExamCompleted, exam.Status)
	jobs.AssertNumberOfCalls(t, "EnqueueNow", 2)
	assert.Len(t, f.publisher.EventsOfType(events.EventExamEnded), 1)

	require.NoError(t, svc.MarkEnded(f.ctx, f.exam.ID))
	jobs.AssertNumberOfCalls(t, "EnqueueNow", 2)
}

func TestMarkEndedFromUpcomingWhenStartWasMissed(t *testing.T) {
	f := newFixture(t)
	jobs := &mockJobs{}
	jobs.On("EnqueueNow", concludeJob(f.exam.ID)).Return(nil).Once()
	svc := f.exams(jobs)

	f.setNow(examEnd)
	require.NoError(t, svc.MarkEnded(f.ctx, f.exam.ID))

	exam, _ := svc.Get(f.ctx, f.exam.ID)
	assert.Equal(t, models.ExamCompleted, exam.Status)
	jobs.AssertExpectations(t)
}

func TestRequestConclusion(t *testing.T) {
	f := newFixture(t)
	jobs := &mockJobs{}
	jobs.On("EnqueueNow", concludeJob(f.exam.ID)).Return(nil)
	svc := f.exams(jobs)

	f.setNow(examEnd.Add(-time.Minute))
	assert.ErrorIs(t, svc.RequestConclusion(f.ctx, f.exam.ID), ErrExamWindowClosed)

	f.setNow(examEnd)
	require.NoError(t, svc.RequestConclusion(f.ctx, f.exam.ID))
	assert.ErrorIs(t, svc.RequestConclusion(f.ctx, 4040), ErrExamNotFound)
	jobs.AssertNumberOfCalls(t, "EnqueueNow", 1)
}

func TestReconcilePending(t *testing.T) {
	f := newFixture(t)

	ongoing := &models.Exam{PaperID: f.paper.ID, Name: "ongoing", Status: models.ExamOngoing,
		StartTime: examStart.Add(-time.Hour), EndTime: examEnd}
	unconcluded := &models.Exam{PaperID: f.paper.ID, Name: "stuck", Status: models.ExamCompleted,
		StartTime: examStart.Add(-48 * time.Hour), EndTime: examStart.Add(-47 * time.Hour)}
	concluded := &models.Exam{PaperID: f.paper.ID, Name: "done", Status: models.ExamCompleted,
		StartTime: examStart.Add(-72 * time.Hour), EndTime: examStart.Add(-71 * time.Hour)}
	for _, e := range []*models.Exam{ongoing, unconcluded, concluded} {
		require.NoError(t, f.store.Exam().Create(f.ctx, e))
	}
	f.setNow(examStart.Add(-time.Hour))
	_, err := f.conclusion(ConclusionConfig{}).Conclude(f.ctx, concluded.ID)
	require.NoError(t, err)

	jobs := &mockJobs{}
	jobs.On("ScheduleAt", mock.Anything, mock.Anything).Return(nil)
	jobs.On("EnqueueNow", mock.Anything).Return(nil)

	summary, err := f.exams(jobs).ReconcilePending(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, &ReconcileSummary{Rescheduled: 2, Concluding: 1}, summary)

	jobs.AssertCalled(t, "ScheduleAt", examStart, startJob(f.exam.ID))
	jobs.AssertCalled(t, "ScheduleAt", examEnd, endJob(f.exam.ID))
	jobs.AssertCalled(t, "ScheduleAt", examEnd, endJob(ongoing.ID))
	jobs.AssertNotCalled(t, "ScheduleAt", mock.Anything, startJob(ongoing.ID))
	jobs.AssertCalled(t, "EnqueueNow", concludeJob(unconcluded.ID))
	jobs.AssertNumberOfCalls(t, "ScheduleAt", 3)
	jobs.AssertNumberOfCalls(t, "EnqueueNow", 1)
}
