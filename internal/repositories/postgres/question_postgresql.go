package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	return q.helpers.TranslateError(q.db.WithContext(ctx).Create(question).Error)
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		First(&question, id).Error; err != nil {
		return nil, q.helpers.TranslateError(err)
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByCode(ctx context.Context, code string) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		Where("code = ?", code).
		First(&question).Error; err != nil {
		return nil, q.helpers.TranslateError(err)
	}
	return &question, nil
}
