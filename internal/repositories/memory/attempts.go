package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type attemptStore struct{ s *Store }

func (a attemptStore) Create(_ context.Context, attempt *models.Attempt) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	if attempt.ExamID != nil {
		for _, existing := range a.s.attempts {
			if existing.ExamID != nil && *existing.ExamID == *attempt.ExamID && existing.UserID == attempt.UserID {
				return repositories.ErrDuplicate
			}
		}
	}
	attempt.ID = a.s.id()
	a.s.attempts[attempt.ID] = clone(attempt)
	return nil
}

func (a attemptStore) GetByID(_ context.Context, id uint) (*models.Attempt, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	attempt, ok := a.s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return clone(attempt), nil
}

func (a attemptStore) GetByIDForUser(ctx context.Context, id uint, userID string) (*models.Attempt, error) {
	attempt, err := a.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != userID {
		return nil, repositories.ErrNotFound
	}
	return attempt, nil
}

func (a attemptStore) GetByExamAndUser(_ context.Context, examID uint, userID string) (*models.Attempt, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	for _, attempt := range a.s.attempts {
		if attempt.ExamID != nil && *attempt.ExamID == examID && attempt.UserID == userID {
			return clone(attempt), nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (a attemptStore) MarkStarted(_ context.Context, id uint, startedOn time.Time, maxTotalScore int) (bool, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	attempt, ok := a.s.attempts[id]
	if !ok || attempt.Status != models.AttemptNotStarted {
		return false, nil
	}
	attempt.Status = models.AttemptInProgress
	attempt.StartedOn = &startedOn
	attempt.MaxTotalScore = maxTotalScore
	return true, nil
}

func (a attemptStore) MarkCompleted(_ context.Context, id uint, endedOn time.Time) (bool, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	attempt, ok := a.s.attempts[id]
	if !ok || attempt.Status != models.AttemptInProgress {
		return false, nil
	}
	attempt.Status = models.AttemptCompleted
	attempt.EndedOn = &endedOn
	return true, nil
}

func (a attemptStore) CompleteInProgress(_ context.Context, examID uint, endedOn time.Time) (int64, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	var n int64
	for _, attempt := range a.s.attempts {
		if attempt.ExamID != nil && *attempt.ExamID == examID && attempt.Status == models.AttemptInProgress {
			ended := endedOn
			attempt.Status = models.AttemptCompleted
			attempt.EndedOn = &ended
			n++
		}
	}
	return n, nil
}

func (a attemptStore) ApplyScore(_ context.Context, id uint, d repositories.ScoreDelta) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	attempt, ok := a.s.attempts[id]
	if !ok {
		return repositories.ErrNotFound
	}
	attempt.TotalScore += d.Score
	attempt.MaxTotalScore = d.PaperMaxScore

	if bucket, ok := attempt.SubjectScore(d.SubjectCode); ok {
		bucket.TotalScore += d.Score
		bucket.MaxTotalScore = d.SubjectMaxScore
		return nil
	}
	attempt.SubjectScores = append(attempt.SubjectScores, models.AttemptSubjectScore{
		AttemptID:     id,
		SubjectCode:   d.SubjectCode,
		TotalScore:    d.Score,
		MaxTotalScore: d.SubjectMaxScore,
	})
	return nil
}

func (a attemptStore) active(examID uint) []*models.Attempt {
	var out []*models.Attempt
	for _, attempt := range a.s.attempts {
		if attempt.ExamID != nil && *attempt.ExamID == examID && attempt.Status.IsActive() {
			out = append(out, attempt)
		}
	}
	return out
}

func (a attemptStore) CountActive(_ context.Context, examID uint) (int64, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	return int64(len(a.active(examID))), nil
}

func (a attemptStore) CountActiveWithSubject(_ context.Context, examID uint, subject models.SubjectCode) (int64, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var n int64
	for _, attempt := range a.active(examID) {
		if _, ok := attempt.SubjectScore(subject); ok {
			n++
		}
	}
	return n, nil
}

// snapshot sorts under the read lock and releases it before calling back,
// so callbacks may write to the store.
func (a attemptStore) snapshot(examID uint, score func(*models.Attempt) (int, bool)) []repositories.RankedScore {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var rows []repositories.RankedScore
	for _, attempt := range a.active(examID) {
		if v, ok := score(attempt); ok {
			rows = append(rows, repositories.RankedScore{AttemptID: attempt.ID, Score: v})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].AttemptID < rows[j].AttemptID
	})
	return rows
}

func (a attemptStore) StreamScores(ctx context.Context, examID uint, fn func(repositories.RankedScore) error) error {
	rows := a.snapshot(examID, func(attempt *models.Attempt) (int, bool) {
		return attempt.TotalScore, true
	})
	return each(ctx, rows, fn)
}

func (a attemptStore) StreamSubjectScores(ctx context.Context, examID uint, subject models.SubjectCode, fn func(repositories.RankedScore) error) error {
	rows := a.snapshot(examID, func(attempt *models.Attempt) (int, bool) {
		bucket, ok := attempt.SubjectScore(subject)
		if !ok {
			return 0, false
		}
		return bucket.TotalScore, true
	})
	return each(ctx, rows, fn)
}

func each(ctx context.Context, rows []repositories.RankedScore, fn func(repositories.RankedScore) error) error {
	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (a attemptStore) ApplyRanks(_ context.Context, updates []repositories.RankUpdate) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	for _, u := range updates {
		attempt, ok := a.s.attempts[u.AttemptID]
		if !ok {
			continue
		}
		rank, percentile := u.Rank, u.Percentile
		attempt.Rank = &rank
		attempt.Percentile = &percentile
	}
	return nil
}

func (a attemptStore) ApplySubjectRanks(_ context.Context, subject models.SubjectCode, updates []repositories.RankUpdate) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	for _, u := range updates {
		attempt, ok := a.s.attempts[u.AttemptID]
		if !ok {
			continue
		}
		if bucket, ok := attempt.SubjectScore(subject); ok {
			rank, percentile := u.Rank, u.Percentile
			bucket.Rank = &rank
			bucket.Percentile = &percentile
		}
	}
	return nil
}

func (a attemptStore) ReconcileScores(_ context.Context, examID uint, subjectMax map[models.SubjectCode]int) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()

	for _, attempt := range a.active(examID) {
		total := 0
		bySubject := make(map[models.SubjectCode]int)
		for _, sub := range a.s.submissions {
			if sub.AttemptID == attempt.ID {
				total += sub.Score
				bySubject[sub.SubjectCode] += sub.Score
			}
		}
		attempt.TotalScore = total

		for subject, score := range bySubject {
			if bucket, ok := attempt.SubjectScore(subject); ok {
				bucket.TotalScore = score
				bucket.MaxTotalScore = subjectMax[subject]
				continue
			}
			attempt.SubjectScores = append(attempt.SubjectScores, models.AttemptSubjectScore{
				AttemptID:     attempt.ID,
				SubjectCode:   subject,
				TotalScore:    score,
				MaxTotalScore: subjectMax[subject],
			})
		}
	}
	return nil
}

func (a attemptStore) ListRanked(_ context.Context, examID uint, filters repositories.ResultFilters) ([]*models.Attempt, int64, error) {
	a.s.mu.RLock()
	defer a.s.mu.RUnlock()

	var ranked []*models.Attempt
	for _, attempt := range a.s.attempts {
		if attempt.ExamID != nil && *attempt.ExamID == examID && attempt.Status.IsActive() && attempt.Rank != nil {
			ranked = append(ranked, attempt)
		}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if *ranked[i].Rank != *ranked[j].Rank {
			return *ranked[i].Rank < *ranked[j].Rank
		}
		return ranked[i].ID < ranked[j].ID
	})

	total := int64(len(ranked))
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	start := filters.Offset
	if start > len(ranked) {
		start = len(ranked)
	}
	end := start + limit
	if end > len(ranked) {
		end = len(ranked)
	}

	out := make([]*models.Attempt, 0, end-start)
	for _, attempt := range ranked[start:end] {
		out = append(out, clone(attempt))
	}
	return out, total, nil
}
