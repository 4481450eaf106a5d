package models

import (
	"time"

	"gorm.io/datatypes"
)

// Submission records a single answered question. At most one exists per
// (attempt, question, user).
type Submission struct {
	ID            uint                        `json:"id" gorm:"primaryKey"`
	AttemptID     uint                        `json:"attempt_id" gorm:"not null;uniqueIndex:idx_submission_once"`
	QuestionID    uint                        `json:"question_id" gorm:"not null;uniqueIndex:idx_submission_once"`
	UserID        string                      `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_submission_once"`
	PaperID       uint                        `json:"paper_id" gorm:"not null;index"`
	SubjectCode   SubjectCode                 `json:"subject_code" gorm:"not null;size:64"`
	OptionsChosen datatypes.JSONSlice[string] `json:"options_chosen" gorm:"type:jsonb"`
	Score         int                         `json:"score" gorm:"not null"`
	MaxScore      int                         `json:"max_score" gorm:"not null"`
	SubmittedAt   time.Time                   `json:"submitted_at" gorm:"not null"`

	CreatedAt time.Time `json:"created_at"`
}

func (Submission) TableName() string {
	return "submissions"
}
