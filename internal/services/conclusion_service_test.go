package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

func placements(t *testing.T, f *fixture, attempts []*models.Attempt) ([]int, []float64) {
	t.Helper()
	ranks := make([]int, 0, len(attempts))
	percentiles := make([]float64, 0, len(attempts))
	for _, a := range attempts {
		stored := f.reload(t, a.ID)
		require.NotNil(t, stored.Rank, "attempt %d has no rank", a.ID)
		require.NotNil(t, stored.Percentile)
		ranks = append(ranks, *stored.Rank)
		percentiles = append(percentiles, *stored.Percentile)
	}
	return ranks, percentiles
}

func TestConcludeRanksWithCompetitionTies(t *testing.T) {
	f := newFixture(t)
	attempts := f.seedRanked(t, 90, 90, 80, 70)

	// never started attempts are left out of the ranking
	idle := &models.Attempt{PaperID: f.paper.ID, ExamID: &f.exam.ID, UserID: "idle", Status: models.AttemptNotStarted}
	require.NoError(t, f.store.Attempt().Create(f.ctx, idle))

	f.setNow(examEnd.Add(time.Minute))
	summary, err := f.conclusion(ConclusionConfig{}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)

	ranks, percentiles := placements(t, f, attempts)
	assert.Equal(t, []int{1, 1, 3, 4}, ranks)
	assert.Equal(t, []float64{75, 75, 25, 0}, percentiles)
	assert.Nil(t, f.reload(t, idle.ID).Rank)

	assert.Equal(t, 4, summary.AttemptedCount)
	assert.Equal(t, 90, summary.HighestScore)
	assert.Equal(t, 70, summary.LowestScore)
	assert.Equal(t, 19, summary.MaxScore)
	assert.Equal(t, 1, summary.Batches)

	exam, err := f.store.Exam().GetByID(f.ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, exam.AttemptedCount)
	assert.Equal(t, 90, exam.HighestScore)
	assert.Equal(t, 70, exam.LowestScore)
	assert.Equal(t, 19, exam.MaxScore)
	require.NotNil(t, exam.ConcludedOn)
	assert.True(t, exam.ConcludedOn.Equal(examEnd.Add(time.Minute)))

	concluded := f.publisher.EventsOfType(events.EventExamConcluded)
	require.Len(t, concluded, 1)
}

func TestConcludeIsIdempotent(t *testing.T) {
	f := newFixture(t)
	attempts := f.seedRanked(t, 12, 7, 7, 7, 3, 0, -2)
	svc := f.conclusion(ConclusionConfig{BatchSize: 2})

	first, err := svc.Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)
	ranks1, pct1 := placements(t, f, attempts)

	second, err := svc.Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)
	ranks2, pct2 := placements(t, f, attempts)

	assert.Equal(t, []int{1, 2, 2, 2, 5, 6, 7}, ranks1)
	assert.Equal(t, ranks1, ranks2)
	assert.Equal(t, pct1, pct2)
	assert.Equal(t, 85.7143, pct1[0])
	assert.Equal(t, first.HighestScore, second.HighestScore)
	assert.Equal(t, -2, second.LowestScore)
	assert.Equal(t, 4, first.Batches)
}

func TestConcludeRanksSubjectsSeparately(t *testing.T) {
	f := newFixture(t)
	svc := f.attempts(nil)

	answers := map[string][]struct {
		code   string
		chosen []string
	}{
		"alice": {{"M1", []string{"m1a"}}, {"S1", []string{"s1b"}}},
		"bob":   {{"M1", []string{"m1a"}}, {"S1", []string{"s1a", "s1b"}}},
		"carol": {{"M1", []string{"m1b"}}},
		"dave":  {{"S1", []string{"s1c"}}},
	}
	ids := make(map[string]uint)
	for _, user := range []string{"alice", "bob", "carol", "dave"} {
		attempt := f.startCompetitive(t, svc, user)
		ids[user] = attempt.ID
		for _, a := range answers[user] {
			_, err := svc.Submit(f.ctx, &SubmitAnswerRequest{
				AttemptID: attempt.ID, QuestionID: f.questionID(t, a.code), OptionsChosen: a.chosen,
			}, user)
			require.NoError(t, err)
		}
	}

	f.setNow(examEnd.Add(time.Minute))
	summary, err := f.conclusion(ConclusionConfig{BatchSize: 2, Reconcile: true}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"maths": 3, "science": 3}, summary.SubjectsRanked)

	subject := func(user string, code models.SubjectCode) *models.AttemptSubjectScore {
		bucket, ok := f.reload(t, ids[user]).SubjectScore(code)
		if !ok {
			return nil
		}
		return bucket
	}

	// maths: alice 4, bob 4, carol -1
	assert.Equal(t, 1, *subject("alice", "maths").Rank)
	assert.Equal(t, 1, *subject("bob", "maths").Rank)
	assert.Equal(t, 3, *subject("carol", "maths").Rank)
	assert.Equal(t, 66.6667, *subject("bob", "maths").Percentile)
	assert.Nil(t, subject("dave", "maths"))

	// science: bob 10, alice 4, dave -2
	assert.Equal(t, 1, *subject("bob", "science").Rank)
	assert.Equal(t, 2, *subject("alice", "science").Rank)
	assert.Equal(t, 3, *subject("dave", "science").Rank)
	assert.Nil(t, subject("carol", "science"))

	// overall: bob 14, alice 8, carol -1, dave -2
	assert.Equal(t, 1, *f.reload(t, ids["bob"]).Rank)
	assert.Equal(t, 4, *f.reload(t, ids["dave"]).Rank)
	assert.Equal(t, 14, summary.HighestScore)
	assert.Equal(t, -2, summary.LowestScore)
}

func TestConcludeReconcilesLostAggregates(t *testing.T) {
	f := newFixture(t)
	healthy := f.attempts(nil)
	lossy := f.attempts(failingAggregates{f.store})

	alice := f.startCompetitive(t, healthy, "alice")
	bob := f.startCompetitive(t, healthy, "bob")

	_, err := healthy.Submit(f.ctx, &SubmitAnswerRequest{
		AttemptID: alice.ID, QuestionID: f.questionID(t, "M1"), OptionsChosen: []string{"m1a"},
	}, "alice")
	require.NoError(t, err)
	_, err = lossy.Submit(f.ctx, &SubmitAnswerRequest{
		AttemptID: bob.ID, QuestionID: f.questionID(t, "S1"), OptionsChosen: []string{"s1a", "s1b"},
	}, "bob")
	require.NoError(t, err)
	require.Equal(t, 0, f.reload(t, bob.ID).TotalScore)

	_, err = f.conclusion(ConclusionConfig{Reconcile: true}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)

	stored := f.reload(t, bob.ID)
	assert.Equal(t, 10, stored.TotalScore)
	assert.Equal(t, 1, *stored.Rank)
	bucket, ok := stored.SubjectScore("science")
	require.True(t, ok)
	assert.Equal(t, 1, *bucket.Rank)
	assert.Equal(t, 2, *f.reload(t, alice.ID).Rank)
}

func TestConcludeWithoutParticipants(t *testing.T) {
	f := newFixture(t)
	f.setNow(examEnd.Add(time.Hour))

	summary, err := f.conclusion(ConclusionConfig{Reconcile: true}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.AttemptedCount)
	assert.Zero(t, summary.Batches)

	exam, err := f.store.Exam().GetByID(f.ctx, f.exam.ID)
	require.NoError(t, err)
	assert.Zero(t, exam.AttemptedCount)
	assert.Zero(t, exam.HighestScore)
	assert.Zero(t, exam.LowestScore)
	assert.Equal(t, 19, exam.MaxScore)
	assert.True(t, exam.IsConcluded())
}

func TestConcludeMissingExamIsFatal(t *testing.T) {
	f := newFixture(t)

	_, err := f.conclusion(ConclusionConfig{}).Conclude(f.ctx, 4040)
	assert.ErrorIs(t, err, ErrExamNotFound)

	orphan := &models.Exam{PaperID: 777, Name: "orphan", StartTime: examStart, EndTime: examEnd}
	require.NoError(t, f.store.Exam().Create(f.ctx, orphan))
	_, err = f.conclusion(ConclusionConfig{}).Conclude(f.ctx, orphan.ID)
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestRankBatcherBoundsWrites(t *testing.T) {
	var sizes []int
	b := newRankBatcher(3, func(_ context.Context, updates []repositories.RankUpdate) error {
		sizes = append(sizes, len(updates))
		return nil
	})

	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, b.add(ctx, repositories.RankUpdate{AttemptID: uint(i + 1)}))
	}
	require.NoError(t, b.flush(ctx))
	require.NoError(t, b.flush(ctx))

	assert.Equal(t, []int{3, 3, 1}, sizes)
	assert.Equal(t, 3, b.batches)
}

func TestConclusionCapsBatchSize(t *testing.T) {
	f := newFixture(t)

	svc := f.conclusion(ConclusionConfig{BatchSize: 100000}).(*conclusionService)
	assert.Equal(t, repositories.MaxRankUpdatesPerBatch, svc.cfg.BatchSize)

	svc = f.conclusion(ConclusionConfig{}).(*conclusionService)
	assert.Equal(t, DefaultRankBatchSize, svc.cfg.BatchSize)
}
