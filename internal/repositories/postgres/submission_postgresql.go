package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type SubmissionPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewSubmissionPostgreSQL(db *gorm.DB) repositories.SubmissionRepository {
	return &SubmissionPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

// Create relies on the unique index over (attempt_id, question_id, user_id);
// the losing side of a concurrent double submit gets ErrDuplicate.
func (s *SubmissionPostgreSQL) Create(ctx context.Context, submission *models.Submission) error {
	return s.helpers.TranslateError(s.db.WithContext(ctx).Create(submission).Error)
}

func (s *SubmissionPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]*models.Submission, error) {
	var submissions []*models.Submission
	if err := s.db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("submitted_at ASC").
		Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}
