package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

func TestAttemptUniquePerExamAndUser(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	examID := uint(9)

	require.NoError(t, store.Attempt().Create(ctx, &models.Attempt{ExamID: &examID, UserID: "u1", Status: models.AttemptNotStarted}))
	err := store.Attempt().Create(ctx, &models.Attempt{ExamID: &examID, UserID: "u1", Status: models.AttemptNotStarted})
	assert.True(t, repositories.IsDuplicateError(err))

	// practice attempts are not unique
	require.NoError(t, store.Attempt().Create(ctx, &models.Attempt{UserID: "u1", Type: models.AttemptPractice}))
	require.NoError(t, store.Attempt().Create(ctx, &models.Attempt{UserID: "u1", Type: models.AttemptPractice}))
}

func TestApplyScoreIsAtomicUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	attempt := &models.Attempt{UserID: "u1", Status: models.AttemptInProgress}
	require.NoError(t, store.Attempt().Create(ctx, attempt))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Attempt().ApplyScore(ctx, attempt.ID, repositories.ScoreDelta{
				Score: 2, PaperMaxScore: 100, SubjectCode: models.SubjectMaths, SubjectMaxScore: 60,
			})
		}()
	}
	wg.Wait()

	got, err := store.Attempt().GetByID(ctx, attempt.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.TotalScore)
	require.Len(t, got.SubjectScores, 1)
	assert.Equal(t, 100, got.SubjectScores[0].TotalScore)
	assert.Equal(t, 60, got.SubjectScores[0].MaxTotalScore)
}

func TestConditionalTransitions(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	attempt := &models.Attempt{UserID: "u1", Status: models.AttemptNotStarted}
	require.NoError(t, store.Attempt().Create(ctx, attempt))
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	ok, err := store.Attempt().MarkCompleted(ctx, attempt.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Attempt().MarkStarted(ctx, attempt.ID, now, 40)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Attempt().MarkStarted(ctx, attempt.ID, now, 40)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.Attempt().MarkCompleted(ctx, attempt.ID, now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStreamScoresOrdersDescending(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	examID := uint(3)

	for i, score := range []int{10, 30, 20} {
		a := &models.Attempt{ExamID: &examID, UserID: string(rune('a' + i)), Status: models.AttemptCompleted, TotalScore: score}
		require.NoError(t, store.Attempt().Create(ctx, a))
	}
	require.NoError(t, store.Attempt().Create(ctx, &models.Attempt{ExamID: &examID, UserID: "z", Status: models.AttemptNotStarted, TotalScore: 99}))

	var scores []int
	require.NoError(t, store.Attempt().StreamScores(ctx, examID, func(r repositories.RankedScore) error {
		scores = append(scores, r.Score)
		return nil
	}))
	assert.Equal(t, []int{30, 20, 10}, scores)
}
