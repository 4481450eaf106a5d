package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	return e.helpers.TranslateError(e.db.WithContext(ctx).Omit("Paper").Create(exam).Error)
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, e.helpers.TranslateError(err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) GetByIDWithPaper(ctx context.Context, id uint) (*models.Exam, error) {
	var exam models.Exam
	if err := e.db.WithContext(ctx).
		Preload("Paper").
		Preload("Paper.Questions").
		Preload("Paper.Questions.Question").
		First(&exam, id).Error; err != nil {
		return nil, e.helpers.TranslateError(err)
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) ListByStatus(ctx context.Context, statuses ...models.ExamStatus) ([]*models.Exam, error) {
	raw := make([]string, len(statuses))
	for i, s := range statuses {
		raw[i] = string(s)
	}

	var exams []*models.Exam
	if err := e.db.WithContext(ctx).
		Where("status IN ?", raw).
		Order("start_time ASC").
		Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (e *ExamPostgreSQL) ListUnconcluded(ctx context.Context) ([]*models.Exam, error) {
	var exams []*models.Exam
	if err := e.db.WithContext(ctx).
		Where("status = ? AND concluded_on IS NULL", string(models.ExamCompleted)).
		Order("end_time ASC").
		Find(&exams).Error; err != nil {
		return nil, err
	}
	return exams, nil
}

func (e *ExamPostgreSQL) TransitionStatus(ctx context.Context, id uint, from, to models.ExamStatus) (bool, error) {
	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (e *ExamPostgreSQL) IncrementEnrolled(ctx context.Context, id uint) error {
	return e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Update("enrolled_count", gorm.Expr("enrolled_count + 1")).Error
}

func (e *ExamPostgreSQL) SaveConclusion(ctx context.Context, id uint, c repositories.ExamConclusion) error {
	result := e.db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"attempted_count": c.AttemptedCount,
			"highest_score":   c.HighestScore,
			"lowest_score":    c.LowestScore,
			"max_score":       c.MaxScore,
			"concluded_on":    c.ConcludedOn,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}
