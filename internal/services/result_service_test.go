package services

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/utils"
)

func TestResultsRequireConclusion(t *testing.T) {
	f := newFixture(t)
	svc := NewResultService(f.store, utils.NewDiscardLogger())

	_, err := svc.List(f.ctx, f.exam.ID, repositories.ResultFilters{})
	assert.ErrorIs(t, err, ErrExamNotConcluded)

	_, err = svc.List(f.ctx, 4040, repositories.ResultFilters{})
	assert.ErrorIs(t, err, ErrExamNotFound)
}

func TestResultsListInRankOrder(t *testing.T) {
	f := newFixture(t)
	f.seedRanked(t, 3, 9, 6, 9)
	_, err := f.conclusion(ConclusionConfig{}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)

	page, err := NewResultService(f.store, utils.NewDiscardLogger()).
		List(f.ctx, f.exam.ID, repositories.ResultFilters{Limit: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(4), page.Total)
	assert.Equal(t, 3, page.Limit)
	require.Len(t, page.Results, 3)
	assert.Equal(t, 1, *page.Results[0].Rank)
	assert.Equal(t, 1, *page.Results[1].Rank)
	assert.Equal(t, 3, *page.Results[2].Rank)
	assert.Equal(t, 6, page.Results[2].TotalScore)
}

func TestResultsSkipStaleRanksOfInactiveAttempts(t *testing.T) {
	f := newFixture(t)
	f.seedRanked(t, 8, 5)

	staleRank, stalePercentile := 1, 50.0
	cancelled := &models.Attempt{
		PaperID:    f.paper.ID,
		ExamID:     &f.exam.ID,
		UserID:     "zed",
		Type:       models.AttemptCompetitive,
		Status:     models.AttemptCancelled,
		TotalScore: 12,
		Rank:       &staleRank,
		Percentile: &stalePercentile,
	}
	require.NoError(t, f.store.Attempt().Create(f.ctx, cancelled))

	_, err := f.conclusion(ConclusionConfig{}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)

	page, err := NewResultService(f.store, utils.NewDiscardLogger()).
		List(f.ctx, f.exam.ID, repositories.ResultFilters{})
	require.NoError(t, err)

	assert.Equal(t, int64(2), page.Total)
	require.Len(t, page.Results, 2)
	for _, attempt := range page.Results {
		assert.NotEqual(t, cancelled.ID, attempt.ID)
	}
	assert.Equal(t, 8, page.Results[0].TotalScore)
}

func TestExportXLSX(t *testing.T) {
	f := newFixture(t)
	svc := f.attempts(nil)
	for _, user := range []string{"alice", "bob"} {
		attempt := f.startCompetitive(t, svc, user)
		_, err := svc.Submit(f.ctx, &SubmitAnswerRequest{
			AttemptID: attempt.ID, QuestionID: f.questionID(t, "M1"), OptionsChosen: []string{"m1a"},
		}, user)
		require.NoError(t, err)
	}
	f.setNow(examEnd.Add(time.Minute))
	_, err := f.conclusion(ConclusionConfig{Reconcile: true}).Conclude(f.ctx, f.exam.ID)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, NewResultService(f.store, utils.NewDiscardLogger()).ExportXLSX(f.ctx, f.exam.ID, &buf))

	book, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer book.Close()

	rows, err := book.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Rank", "User ID", "Attempt ID", "Score", "Max Score", "Percentile", "Status",
		"history score", "history rank", "history percentile",
		"maths score", "maths rank", "maths percentile",
		"science score", "science rank", "science percentile"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "4", rows[1][3])
	assert.Equal(t, "4", rows[1][10])
}
