package models

import (
	"database/sql/driver"
	"time"
)

type AttemptType string

const (
	AttemptCompetitive AttemptType = "competitive"
	AttemptPractice    AttemptType = "practice"
)

func (t AttemptType) Valid() bool {
	return t == AttemptCompetitive || t == AttemptPractice
}

func (t *AttemptType) Scan(value interface{}) error {
	return scanEnum(t, value, AttemptType.Valid, "attempt type")
}

func (t AttemptType) Value() (driver.Value, error) {
	return valueEnum(t, AttemptType.Valid, "attempt type")
}

type AttemptStatus string

const (
	AttemptNotStarted AttemptStatus = "not_started"
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
	AttemptCancelled  AttemptStatus = "cancelled"
)

func (s AttemptStatus) Valid() bool {
	switch s {
	case AttemptNotStarted, AttemptInProgress, AttemptCompleted, AttemptCancelled:
		return true
	}
	return false
}

func (s *AttemptStatus) Scan(value interface{}) error {
	return scanEnum(s, value, AttemptStatus.Valid, "attempt status")
}

func (s AttemptStatus) Value() (driver.Value, error) {
	return valueEnum(s, AttemptStatus.Valid, "attempt status")
}

// IsActive reports whether the attempt takes part in ranking.
func (s AttemptStatus) IsActive() bool {
	return s == AttemptInProgress || s == AttemptCompleted
}

// ActiveAttemptStatuses lists the raw status values that are ranked.
func ActiveAttemptStatuses() []string {
	return []string{string(AttemptInProgress), string(AttemptCompleted)}
}

// Attempt is one user's sitting of a paper, either enrolled into an exam or
// started freely for practice.
type Attempt struct {
	ID      uint          `json:"id" gorm:"primaryKey"`
	PaperID uint          `json:"paper_id" gorm:"not null;index"`
	ExamID  *uint         `json:"exam_id,omitempty" gorm:"uniqueIndex:idx_attempt_exam_user;index:idx_attempt_exam_status"`
	UserID  string        `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_attempt_exam_user;index"`
	Type    AttemptType   `json:"type" gorm:"not null;size:16"`
	Status  AttemptStatus `json:"status" gorm:"not null;size:16;default:not_started;index:idx_attempt_exam_status"`

	EnrolledOn *time.Time `json:"enrolled_on,omitempty"`
	StartedOn  *time.Time `json:"started_on,omitempty"`
	EndedOn    *time.Time `json:"ended_on,omitempty"`

	TotalScore    int      `json:"total_score" gorm:"not null;default:0;index"`
	MaxTotalScore int      `json:"max_total_score" gorm:"not null;default:0"`
	Rank          *int     `json:"rank,omitempty"`
	Percentile    *float64 `json:"percentile,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SubjectScores []AttemptSubjectScore `json:"subject_scores" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

// AttemptSubjectScore is the per-subject bucket of an attempt. A bucket
// exists only once a question of that subject has been answered.
type AttemptSubjectScore struct {
	ID            uint        `json:"-" gorm:"primaryKey"`
	AttemptID     uint        `json:"-" gorm:"not null;uniqueIndex:idx_attempt_subject"`
	SubjectCode   SubjectCode `json:"subject_code" gorm:"not null;size:64;uniqueIndex:idx_attempt_subject"`
	TotalScore    int         `json:"total_score" gorm:"not null;default:0"`
	MaxTotalScore int         `json:"max_total_score" gorm:"not null;default:0"`
	Rank          *int        `json:"rank,omitempty"`
	Percentile    *float64    `json:"percentile,omitempty"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (AttemptSubjectScore) TableName() string {
	return "attempt_subject_scores"
}

func (a *Attempt) IsCompetitive() bool {
	return a.Type == AttemptCompetitive
}

func (a *Attempt) SubjectScore(code SubjectCode) (*AttemptSubjectScore, bool) {
	for i := range a.SubjectScores {
		if a.SubjectScores[i].SubjectCode == code {
			return &a.SubjectScores[i], true
		}
	}
	return nil, false
}
