package models

import (
	"database/sql/driver"
	"time"

	"gorm.io/datatypes"
)

type ExamStatus string

const (
	ExamUpcoming  ExamStatus = "upcoming"
	ExamOngoing   ExamStatus = "ongoing"
	ExamCompleted ExamStatus = "completed"
)

func (s ExamStatus) Valid() bool {
	switch s {
	case ExamUpcoming, ExamOngoing, ExamCompleted:
		return true
	}
	return false
}

func (s *ExamStatus) Scan(value interface{}) error {
	return scanEnum(s, value, ExamStatus.Valid, "exam status")
}

func (s ExamStatus) Value() (driver.Value, error) {
	return valueEnum(s, ExamStatus.Valid, "exam status")
}

// Exam is a scheduled sitting of a paper. The aggregate counters are
// maintained by enrollment, attempts and the conclusion pipeline.
type Exam struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	PaperID   uint           `json:"paper_id" gorm:"not null;index" validate:"required"`
	Name      string         `json:"name" gorm:"not null;size:200" validate:"required,max=200"`
	Date      datatypes.Date `json:"date" gorm:"index"`
	Status    ExamStatus     `json:"status" gorm:"not null;size:16;default:upcoming;index" validate:"omitempty,exam_status"`
	StartTime time.Time      `json:"start_time" gorm:"not null" validate:"required"`
	EndTime   time.Time      `json:"end_time" gorm:"not null" validate:"required,gtfield=StartTime"`

	EnrolledCount  int        `json:"enrolled_count" gorm:"not null;default:0"`
	AttemptedCount int        `json:"attempted_count" gorm:"not null;default:0"`
	HighestScore   int        `json:"highest_score" gorm:"not null;default:0"`
	LowestScore    int        `json:"lowest_score" gorm:"not null;default:0"`
	MaxScore       int        `json:"max_score" gorm:"not null;default:0"`
	ConcludedOn    *time.Time `json:"concluded_on,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Paper *Paper `json:"paper,omitempty" gorm:"foreignKey:PaperID"`
}

func (Exam) TableName() string {
	return "exams"
}

// WindowContains reports whether t falls within [StartTime, EndTime].
func (e *Exam) WindowContains(t time.Time) bool {
	return !t.Before(e.StartTime) && !t.After(e.EndTime)
}

func (e *Exam) IsConcluded() bool {
	return e.ConcludedOn != nil
}
