package postgres

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type PaperPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewPaperPostgreSQL(db *gorm.DB) repositories.PaperRepository {
	return &PaperPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// Create stores the paper and its marking rules. Bound questions must
// already exist and are not touched.
func (p *PaperPostgreSQL) Create(ctx context.Context, paper *models.Paper) error {
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rules := paper.Questions
		paper.Questions = nil
		defer func() { paper.Questions = rules }()

		if err := tx.Omit(clause.Associations).Create(paper).Error; err != nil {
			return err
		}
		for i := range rules {
			rules[i].PaperID = paper.ID
			if err := tx.Omit("Question").Create(&rules[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	return p.helpers.TranslateError(err)
}

func (p *PaperPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Paper, error) {
	var paper models.Paper
	if err := p.db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		Preload("Questions.Question").
		Preload("Questions.Question.Options", func(db *gorm.DB) *gorm.DB { return db.Order("\"order\" ASC") }).
		First(&paper, id).Error; err != nil {
		return nil, p.helpers.TranslateError(err)
	}
	return &paper, nil
}
