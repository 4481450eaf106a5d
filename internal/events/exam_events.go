package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptEnrolled  EventType = "attempt.enrolled"
	EventAttemptStarted   EventType = "attempt.started"
	EventAttemptSubmitted EventType = "attempt.submitted"
	EventAttemptCompleted EventType = "attempt.completed"
	EventExamStarted      EventType = "exam.started"
	EventExamEnded        EventType = "exam.ended"
	EventExamConcluded    EventType = "exam.concluded"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// ExamEvent is the envelope for every event the service emits.
type ExamEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

func NewEvent(eventType EventType, at time.Time, data interface{}) *ExamEvent {
	return &ExamEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: at,
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

type AttemptEvent struct {
	AttemptID uint   `json:"attempt_id"`
	ExamID    *uint  `json:"exam_id,omitempty"`
	PaperID   uint   `json:"paper_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
}

type SubmissionEvent struct {
	SubmissionID uint   `json:"submission_id"`
	AttemptID    uint   `json:"attempt_id"`
	QuestionID   uint   `json:"question_id"`
	UserID       string `json:"user_id"`
	SubjectCode  string `json:"subject_code"`
	Score        int    `json:"score"`
	MaxScore     int    `json:"max_score"`
}

type ExamStatusEvent struct {
	ExamID uint   `json:"exam_id"`
	Status string `json:"status"`
}

type ExamConcludedEvent struct {
	ExamID         uint      `json:"exam_id"`
	AttemptedCount int       `json:"attempted_count"`
	HighestScore   int       `json:"highest_score"`
	LowestScore    int       `json:"lowest_score"`
	MaxScore       int       `json:"max_score"`
	ConcludedOn    time.Time `json:"concluded_on"`
}
