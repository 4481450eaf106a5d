// Package scheduler provides the delayed-callback and job-queue contract the
// exam lifecycle needs: schedule at an instant, enqueue now, and re-register
// pending work after a restart. Delivery is at-least-once.
package scheduler

import (
	"encoding/json"
	"fmt"
)

type JobKind string

const (
	JobMarkExamStarted JobKind = "mark_exam_started"
	JobMarkExamEnded   JobKind = "mark_exam_ended"
	JobConcludeExam    JobKind = "conclude_exam"
)

func (k JobKind) Valid() bool {
	switch k {
	case JobMarkExamStarted, JobMarkExamEnded, JobConcludeExam:
		return true
	}
	return false
}

// Job is a unit of deferred work. Two jobs with the same kind and exam are
// the same job; scheduling it again only moves its run time.
type Job struct {
	Kind   JobKind `json:"kind"`
	ExamID uint    `json:"exam_id"`
}

func (j Job) String() string {
	return fmt.Sprintf("%s(%d)", j.Kind, j.ExamID)
}

func (j Job) Encode() string {
	// Field order is fixed by the struct, so equal jobs encode identically.
	raw, _ := json.Marshal(j)
	return string(raw)
}

func DecodeJob(data []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("invalid job payload: %w", err)
	}
	if !job.Kind.Valid() {
		return Job{}, fmt.Errorf("unknown job kind %q", job.Kind)
	}
	return job, nil
}
