package models

import (
	"database/sql/driver"
	"time"
)

type QuestionType string

const (
	QuestionSingleCorrect   QuestionType = "single_correct"
	QuestionMultipleCorrect QuestionType = "multiple_correct"
)

func (t QuestionType) Valid() bool {
	return t == QuestionSingleCorrect || t == QuestionMultipleCorrect
}

func (t *QuestionType) Scan(value interface{}) error {
	return scanEnum(t, value, QuestionType.Valid, "question type")
}

func (t QuestionType) Value() (driver.Value, error) {
	return valueEnum(t, QuestionType.Valid, "question type")
}

type Question struct {
	ID          uint         `json:"id" gorm:"primaryKey"`
	Code        string       `json:"code" gorm:"uniqueIndex;not null;size:64" validate:"required,max=64"`
	Type        QuestionType `json:"type" gorm:"not null;size:32" validate:"required,question_type"`
	SubjectCode SubjectCode  `json:"subject_code" gorm:"not null;size:64;index" validate:"required,subject_code"`
	Statement   string       `json:"statement" gorm:"type:text;not null" validate:"required"`
	ImageURL    *string      `json:"image_url,omitempty" gorm:"size:512" validate:"omitempty,url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Options []QuestionOption `json:"options" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" validate:"required,min=1,dive"`
}

// QuestionOption carries the answer key. Correct and Weight never leave the
// service boundary; handlers render options through a public view.
type QuestionOption struct {
	ID         uint    `json:"id" gorm:"primaryKey"`
	QuestionID uint    `json:"question_id" gorm:"not null;index"`
	Code       string  `json:"code" gorm:"uniqueIndex;not null;size:64" validate:"required,max=64"`
	Order      int     `json:"order" gorm:"not null;default:0" validate:"min=0"`
	Text       *string `json:"text,omitempty" gorm:"type:text"`
	ImageURL   *string `json:"image_url,omitempty" gorm:"size:512" validate:"omitempty,url"`
	Correct    bool    `json:"correct" gorm:"not null;default:false"`
	Weight     int     `json:"weight" gorm:"not null;default:0" validate:"min=0,max=100"`
}

func (Question) TableName() string {
	return "questions"
}

func (QuestionOption) TableName() string {
	return "question_options"
}

func (q *Question) OptionByCode(code string) (*QuestionOption, bool) {
	for i := range q.Options {
		if q.Options[i].Code == code {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// CorrectWeightTotal sums the weights of correct options.
func (q *Question) CorrectWeightTotal() int {
	total := 0
	for _, opt := range q.Options {
		if opt.Correct {
			total += opt.Weight
		}
	}
	return total
}
