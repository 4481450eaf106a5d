package postgres

import (
	"gorm.io/gorm"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
)

type Repository struct {
	questions   repositories.QuestionRepository
	papers      repositories.PaperRepository
	exams       repositories.ExamRepository
	attempts    repositories.AttemptRepository
	submissions repositories.SubmissionRepository
}

func NewRepository(db *gorm.DB) repositories.Repository {
	return &Repository{
		questions:   NewQuestionPostgreSQL(db),
		papers:      NewPaperPostgreSQL(db),
		exams:       NewExamPostgreSQL(db),
		attempts:    NewAttemptPostgreSQL(db),
		submissions: NewSubmissionPostgreSQL(db),
	}
}

func (r *Repository) Question() repositories.QuestionRepository     { return r.questions }
func (r *Repository) Paper() repositories.PaperRepository           { return r.papers }
func (r *Repository) Exam() repositories.ExamRepository             { return r.exams }
func (r *Repository) Attempt() repositories.AttemptRepository       { return r.attempts }
func (r *Repository) Submission() repositories.SubmissionRepository { return r.submissions }

// AutoMigrate creates or updates the schema for every persisted model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Question{},
		&models.QuestionOption{},
		&models.Paper{},
		&models.PaperQuestion{},
		&models.Exam{},
		&models.Attempt{},
		&models.AttemptSubjectScore{},
		&models.Submission{},
	)
}
