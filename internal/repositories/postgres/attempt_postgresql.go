package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.Attempt) error {
	return a.helpers.TranslateError(a.db.WithContext(ctx).Create(attempt).Error)
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Preload("SubjectScores").
		First(&attempt, id).Error; err != nil {
		return nil, a.helpers.TranslateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDForUser(ctx context.Context, id uint, userID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Preload("SubjectScores").
		Where("id = ? AND user_id = ?", id, userID).
		First(&attempt).Error; err != nil {
		return nil, a.helpers.TranslateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByExamAndUser(ctx context.Context, examID uint, userID string) (*models.Attempt, error) {
	var attempt models.Attempt
	if err := a.db.WithContext(ctx).
		Where("exam_id = ? AND user_id = ?", examID, userID).
		First(&attempt).Error; err != nil {
		return nil, a.helpers.TranslateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) MarkStarted(ctx context.Context, id uint, startedOn time.Time, maxTotalScore int) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, string(models.AttemptNotStarted)).
		Updates(map[string]interface{}{
			"status":          string(models.AttemptInProgress),
			"started_on":      startedOn,
			"max_total_score": maxTotalScore,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (a *AttemptPostgreSQL) MarkCompleted(ctx context.Context, id uint, endedOn time.Time) (bool, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("id = ? AND status = ?", id, string(models.AttemptInProgress)).
		Updates(map[string]interface{}{
			"status":   string(models.AttemptCompleted),
			"ended_on": endedOn,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (a *AttemptPostgreSQL) CompleteInProgress(ctx context.Context, examID uint, endedOn time.Time) (int64, error) {
	result := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Where("exam_id = ? AND status = ?", examID, string(models.AttemptInProgress)).
		Updates(map[string]interface{}{
			"status":   string(models.AttemptCompleted),
			"ended_on": endedOn,
		})
	return result.RowsAffected, result.Error
}

// ApplyScore increments in SQL so concurrent submissions for the same
// attempt cannot lose each other's update.
func (a *AttemptPostgreSQL) ApplyScore(ctx context.Context, id uint, d repositories.ScoreDelta) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Attempt{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{
				"total_score":     gorm.Expr("total_score + ?", d.Score),
				"max_total_score": d.PaperMaxScore,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repositories.ErrNotFound
		}

		return a.addToSubjectBucket(tx, &models.AttemptSubjectScore{
			AttemptID:     id,
			SubjectCode:   d.SubjectCode,
			TotalScore:    d.Score,
			MaxTotalScore: d.SubjectMaxScore,
		})
	})
}

// addToSubjectBucket creates the bucket or adds to its running total.
func (a *AttemptPostgreSQL) addToSubjectBucket(tx *gorm.DB, bucket *models.AttemptSubjectScore) error {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}, {Name: "subject_code"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_score":     gorm.Expr("attempt_subject_scores.total_score + EXCLUDED.total_score"),
			"max_total_score": gorm.Expr("EXCLUDED.max_total_score"),
		}),
	}).Create(bucket).Error
}

func (a *AttemptPostgreSQL) activeScope(examID uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("attempts.exam_id = ? AND attempts.status IN ?", examID, models.ActiveAttemptStatuses())
	}
}

func (a *AttemptPostgreSQL) CountActive(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Scopes(a.activeScope(examID)).
		Count(&count).Error
	return count, err
}

func (a *AttemptPostgreSQL) CountActiveWithSubject(ctx context.Context, examID uint, subject models.SubjectCode) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Joins("JOIN attempt_subject_scores s ON s.attempt_id = attempts.id").
		Scopes(a.activeScope(examID)).
		Where("s.subject_code = ?", string(subject)).
		Count(&count).Error
	return count, err
}

func (a *AttemptPostgreSQL) StreamScores(ctx context.Context, examID uint, fn func(repositories.RankedScore) error) error {
	query := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Select("attempts.id, attempts.total_score").
		Scopes(a.activeScope(examID)).
		Order("attempts.total_score DESC, attempts.id ASC")
	return a.stream(query, fn)
}

func (a *AttemptPostgreSQL) StreamSubjectScores(ctx context.Context, examID uint, subject models.SubjectCode, fn func(repositories.RankedScore) error) error {
	query := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Select("attempts.id, s.total_score").
		Joins("JOIN attempt_subject_scores s ON s.attempt_id = attempts.id").
		Scopes(a.activeScope(examID)).
		Where("s.subject_code = ?", string(subject)).
		Order("s.total_score DESC, attempts.id ASC")
	return a.stream(query, fn)
}

// stream walks a server-side cursor row by row.
func (a *AttemptPostgreSQL) stream(query *gorm.DB, fn func(repositories.RankedScore) error) error {
	rows, err := query.Rows()
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row repositories.RankedScore
		if err := rows.Scan(&row.AttemptID, &row.Score); err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (a *AttemptPostgreSQL) ApplyRanks(ctx context.Context, updates []repositories.RankUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	values, args := a.helpers.RankValues(updates)
	sql := fmt.Sprintf(`UPDATE attempts AS a
SET rank = v.rank, percentile = v.percentile, updated_at = NOW()
FROM (VALUES %s) AS v(id, rank, percentile)
WHERE a.id = v.id`, values)
	return a.db.WithContext(ctx).Exec(sql, args...).Error
}

func (a *AttemptPostgreSQL) ApplySubjectRanks(ctx context.Context, subject models.SubjectCode, updates []repositories.RankUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	values, args := a.helpers.RankValues(updates)
	args = append(args, string(subject))
	sql := fmt.Sprintf(`UPDATE attempt_subject_scores AS s
SET rank = v.rank, percentile = v.percentile
FROM (VALUES %s) AS v(attempt_id, rank, percentile)
WHERE s.attempt_id = v.attempt_id AND s.subject_code = ?`, values)
	return a.db.WithContext(ctx).Exec(sql, args...).Error
}

func (a *AttemptPostgreSQL) ReconcileScores(ctx context.Context, examID uint, subjectMax map[models.SubjectCode]int) error {
	active := models.ActiveAttemptStatuses()
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(`UPDATE attempts AS a
SET total_score = t.total, updated_at = NOW()
FROM (
	SELECT a2.id, COALESCE(SUM(sub.score), 0) AS total
	FROM attempts a2
	LEFT JOIN submissions sub ON sub.attempt_id = a2.id
	WHERE a2.exam_id = ? AND a2.status IN ?
	GROUP BY a2.id
) AS t
WHERE a.id = t.id AND a.total_score <> t.total`, examID, active).Error; err != nil {
			return err
		}

		if err := tx.Exec(`INSERT INTO attempt_subject_scores (attempt_id, subject_code, total_score, max_total_score)
SELECT sub.attempt_id, sub.subject_code, SUM(sub.score), 0
FROM submissions sub
JOIN attempts a ON a.id = sub.attempt_id
WHERE a.exam_id = ? AND a.status IN ?
GROUP BY sub.attempt_id, sub.subject_code
ON CONFLICT (attempt_id, subject_code) DO UPDATE SET total_score = EXCLUDED.total_score`, examID, active).Error; err != nil {
			return err
		}

		for subject, max := range subjectMax {
			if err := tx.Exec(`UPDATE attempt_subject_scores SET max_total_score = ?
WHERE subject_code = ? AND attempt_id IN (SELECT id FROM attempts WHERE exam_id = ?)`,
				max, string(subject), examID).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *AttemptPostgreSQL) ListRanked(ctx context.Context, examID uint, filters repositories.ResultFilters) ([]*models.Attempt, int64, error) {
	var attempts []*models.Attempt
	var total int64

	// ranks left on attempts that dropped out of the active set are stale
	base := a.db.WithContext(ctx).
		Model(&models.Attempt{}).
		Scopes(a.activeScope(examID)).
		Where("attempts.rank IS NOT NULL")

	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := a.helpers.ApplyPagination(base.Session(&gorm.Session{}).Order("attempts.rank ASC, attempts.id ASC"), filters.Limit, filters.Offset)
	if err := query.Preload("SubjectScores").Find(&attempts).Error; err != nil {
		return nil, 0, err
	}
	return attempts, total, nil
}
