package services

import (
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

type StartAttemptRequest struct {
	PaperID uint  `json:"paper_id" validate:"required"`
	ExamID  *uint `json:"exam_id,omitempty" validate:"omitempty,min=1"`
}

type SubmitAnswerRequest struct {
	AttemptID     uint     `json:"attempt_id" validate:"required"`
	QuestionID    uint     `json:"question_id" validate:"required"`
	OptionsChosen []string `json:"options_chosen" validate:"omitempty,max=26,dive,required,max=64"`
}

type NextQuestionRequest struct {
	PaperID     uint   `json:"paper_id" validate:"required"`
	CurrentCode string `json:"current_code,omitempty" validate:"omitempty,max=64"`
}

// NextQuestionResponse carries the next question without its answer key.
type NextQuestionResponse struct {
	Done     bool            `json:"done"`
	Position int             `json:"position,omitempty"`
	Total    int             `json:"total"`
	Question *PublicQuestion `json:"question,omitempty"`
}

type PublicQuestion struct {
	ID            uint           `json:"id"`
	Code          string         `json:"code"`
	Type          string         `json:"type"`
	SubjectCode   string         `json:"subject_code"`
	Statement     string         `json:"statement"`
	ImageURL      *string        `json:"image_url,omitempty"`
	PositiveScore int            `json:"positive_score"`
	NegativeScore int            `json:"negative_score"`
	Mandatory     bool           `json:"mandatory"`
	Options       []PublicOption `json:"options"`
}

type PublicOption struct {
	Code     string  `json:"code"`
	Order    int     `json:"order"`
	Text     *string `json:"text,omitempty"`
	ImageURL *string `json:"image_url,omitempty"`
}

type CreateExamRequest struct {
	PaperID   uint      `json:"paper_id" validate:"required"`
	Name      string    `json:"name" validate:"required,max=200"`
	StartTime time.Time `json:"start_time" validate:"required"`
	EndTime   time.Time `json:"end_time" validate:"required,gtfield=StartTime"`
}

type ConclusionSummary struct {
	ExamID         uint           `json:"exam_id"`
	AttemptedCount int            `json:"attempted_count"`
	HighestScore   int            `json:"highest_score"`
	LowestScore    int            `json:"lowest_score"`
	MaxScore       int            `json:"max_score"`
	Batches        int            `json:"batches"`
	SubjectsRanked map[string]int `json:"subjects_ranked"`
	ConcludedOn    time.Time      `json:"concluded_on"`
}

type ReconcileSummary struct {
	Rescheduled int `json:"rescheduled"`
	Concluding  int `json:"concluding"`
}

type ResultPage struct {
	Exam    *models.Exam      `json:"exam"`
	Results []*models.Attempt `json:"results"`
	Total   int64             `json:"total"`
	Limit   int               `json:"limit"`
	Offset  int               `json:"offset"`
}

func toPublicQuestion(pq models.PaperQuestion) *PublicQuestion {
	q := pq.Question
	options := make([]PublicOption, 0, len(q.Options))
	for _, o := range q.Options {
		options = append(options, PublicOption{Code: o.Code, Order: o.Order, Text: o.Text, ImageURL: o.ImageURL})
	}
	return &PublicQuestion{
		ID:            q.ID,
		Code:          q.Code,
		Type:          string(q.Type),
		SubjectCode:   string(q.SubjectCode),
		Statement:     q.Statement,
		ImageURL:      q.ImageURL,
		PositiveScore: pq.PositiveScore,
		NegativeScore: pq.NegativeScore,
		Mandatory:     pq.Mandatory,
		Options:       options,
	}
}

type SimulationConfig struct {
	Users []string
	Seed  uint64
	// SkipRate is the chance a participant leaves an optional question
	// unanswered.
	SkipRate float64
}

type SimulationSummary struct {
	ExamID      uint               `json:"exam_id"`
	Attempts    int                `json:"attempts"`
	Submissions int                `json:"submissions"`
	Conclusion  *ConclusionSummary `json:"conclusion"`
}
