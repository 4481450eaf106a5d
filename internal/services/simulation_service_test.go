package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

func TestSimulationFillsAndConcludesExam(t *testing.T) {
	f := newFixture(t)
	f.setNow(examEnd.Add(time.Hour))
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6"}
	svc := NewSimulationService(f.store, f.conclusion(ConclusionConfig{Reconcile: true}), utils.NewDiscardLogger())

	summary, err := svc.Run(f.ctx, f.exam.ID, SimulationConfig{Users: users, Seed: 42, SkipRate: 0.3})
	require.NoError(t, err)
	assert.Equal(t, len(users), summary.Attempts)
	assert.GreaterOrEqual(t, summary.Submissions, len(users))
	require.NotNil(t, summary.Conclusion)
	assert.Equal(t, len(users), summary.Conclusion.AttemptedCount)

	sawFirst := false
	for _, user := range users {
		attempt, err := f.store.Attempt().GetByExamAndUser(f.ctx, f.exam.ID, user)
		require.NoError(t, err)
		assert.Equal(t, models.AttemptCompleted, attempt.Status)
		assert.True(t, attempt.EndedOn.Equal(examEnd))
		require.NotNil(t, attempt.Rank)
		assert.GreaterOrEqual(t, *attempt.Rank, 1)
		assert.LessOrEqual(t, *attempt.Rank, len(users))
		sawFirst = sawFirst || *attempt.Rank == 1

		subs, err := f.store.Submission().ListByAttempt(f.ctx, attempt.ID)
		require.NoError(t, err)
		total := 0
		for _, s := range subs {
			assert.False(t, s.SubmittedAt.Before(examStart))
			assert.False(t, s.SubmittedAt.After(examEnd))
			total += s.Score
		}
		assert.Equal(t, total, attempt.TotalScore)
	}
	assert.True(t, sawFirst)

	// finished users are left alone on a second run
	again, err := svc.Run(f.ctx, f.exam.ID, SimulationConfig{Users: users, Seed: 7})
	require.NoError(t, err)
	assert.Zero(t, again.Attempts)
	assert.Equal(t, len(users), again.Conclusion.AttemptedCount)
}

func TestSimulationNeedsUsers(t *testing.T) {
	f := newFixture(t)
	svc := NewSimulationService(f.store, f.conclusion(ConclusionConfig{}), utils.NewDiscardLogger())

	_, err := svc.Run(f.ctx, f.exam.ID, SimulationConfig{})
	assert.True(t, IsValidation(err))

	_, err = svc.Run(f.ctx, 4040, SimulationConfig{Users: []string{"u1"}})
	assert.ErrorIs(t, err, ErrExamNotFound)
}
