package models

import (
	"database/sql/driver"
	"sort"
	"time"
)

type PaperType string

const (
	PaperReal     PaperType = "real"
	PaperMock     PaperType = "mock"
	PaperInternal PaperType = "internal"
)

func (t PaperType) Valid() bool {
	switch t {
	case PaperReal, PaperMock, PaperInternal:
		return true
	}
	return false
}

func (t *PaperType) Scan(value interface{}) error {
	return scanEnum(t, value, PaperType.Valid, "paper type")
}

func (t PaperType) Value() (driver.Value, error) {
	return valueEnum(t, PaperType.Valid, "paper type")
}

type Paper struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Code            string    `json:"code" gorm:"uniqueIndex;not null;size:64" validate:"required,max=64"`
	Name            string    `json:"name" gorm:"not null;size:200" validate:"required,max=200"`
	Type            PaperType `json:"type" gorm:"not null;size:16;default:real" validate:"required,paper_type"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null" validate:"required,min=1"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Questions []PaperQuestion `json:"questions" gorm:"foreignKey:PaperID;constraint:OnDelete:CASCADE" validate:"required,min=1,dive"`
}

// PaperQuestion is the per-paper marking rule for a question.
type PaperQuestion struct {
	ID            uint `json:"id" gorm:"primaryKey"`
	PaperID       uint `json:"paper_id" gorm:"not null;uniqueIndex:idx_paper_question"`
	QuestionID    uint `json:"question_id" gorm:"not null;uniqueIndex:idx_paper_question" validate:"required"`
	Order         int  `json:"order" gorm:"not null;default:0" validate:"min=0"`
	PositiveScore int  `json:"positive_score" gorm:"not null" validate:"min=0"`
	NegativeScore int  `json:"negative_score" gorm:"not null;default:0" validate:"min=0"`
	Mandatory     bool `json:"mandatory" gorm:"not null;default:false"`

	Question Question `json:"question" gorm:"foreignKey:QuestionID" validate:"-"`
}

func (Paper) TableName() string {
	return "papers"
}

func (PaperQuestion) TableName() string {
	return "paper_questions"
}

func (p *Paper) Duration() time.Duration {
	return time.Duration(p.DurationMinutes) * time.Minute
}

// MaxScore is the sum of positive scores over all questions of the paper.
func (p *Paper) MaxScore() int {
	total := 0
	for _, pq := range p.Questions {
		total += pq.PositiveScore
	}
	return total
}

func (p *Paper) SubjectMaxScores() map[SubjectCode]int {
	scores := make(map[SubjectCode]int)
	for _, pq := range p.Questions {
		scores[pq.Question.SubjectCode] += pq.PositiveScore
	}
	return scores
}

// SubjectCodes returns the distinct subjects of the paper in a stable order.
func (p *Paper) SubjectCodes() []SubjectCode {
	seen := make(map[SubjectCode]struct{})
	var codes []SubjectCode
	for _, pq := range p.Questions {
		if _, ok := seen[pq.Question.SubjectCode]; ok {
			continue
		}
		seen[pq.Question.SubjectCode] = struct{}{}
		codes = append(codes, pq.Question.SubjectCode)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}

// RuleFor finds the marking rule bound to the given question code.
func (p *Paper) RuleFor(questionCode string) (*PaperQuestion, bool) {
	for i := range p.Questions {
		if p.Questions[i].Question.Code == questionCode {
			return &p.Questions[i], true
		}
	}
	return nil, false
}

func (p *Paper) QuestionByID(questionID uint) (*Question, bool) {
	for i := range p.Questions {
		if p.Questions[i].QuestionID == questionID {
			return &p.Questions[i].Question, true
		}
	}
	return nil, false
}

// OrderedQuestions returns the paper's questions sorted by their order field.
func (p *Paper) OrderedQuestions() []PaperQuestion {
	ordered := make([]PaperQuestion, len(p.Questions))
	copy(ordered, p.Questions)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Order < ordered[j].Order })
	return ordered
}
