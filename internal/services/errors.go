package services

import (
	"errors"

	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
)

// ===== ERROR KINDS =====

var (
	ErrNotFound        = errors.New("resource not found")
	ErrConflict        = errors.New("resource conflict")
	ErrWindowViolation = errors.New("outside the allowed time window")
	ErrValidation      = errors.New("validation failed")
)

// kindError ties a specific sentinel to its kind so errors.Is matches both.
type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

func newKind(kind error, msg string) error {
	return &kindError{msg: msg, kind: kind}
}

// ===== DOMAIN ERRORS =====

var (
	ErrExamNotFound     = newKind(ErrNotFound, "exam not found")
	ErrPaperNotFound    = newKind(ErrNotFound, "paper not found")
	ErrQuestionNotFound = newKind(ErrNotFound, "question not found")
	ErrAttemptNotFound  = newKind(ErrNotFound, "attempt not found")

	ErrAlreadyEnrolled      = newKind(ErrConflict, "user is already enrolled in the exam")
	ErrDuplicateSubmission  = newKind(ErrConflict, "question has already been answered in this attempt")
	ErrPaperMismatch        = newKind(ErrConflict, "paper does not belong to the exam")
	ErrAttemptNotInProgress = newKind(ErrConflict, "attempt is not in progress")
	ErrCodeTaken            = newKind(ErrConflict, "code is already in use")
	ErrExamNotConcluded     = newKind(ErrConflict, "exam results are not available yet")
	ErrConclusionRunning    = newKind(ErrConflict, "conclusion is already running for the exam")

	ErrExamWindowClosed      = newKind(ErrWindowViolation, "exam is not open for this action")
	ErrPracticeWindowElapsed = newKind(ErrWindowViolation, "practice time limit has elapsed")

	// Scoring failures keep their own identity; callers compare with errors.Is.
	ErrMandatoryUnanswered = scoring.ErrMandatoryUnanswered
	ErrQuestionNotInPaper  = scoring.ErrQuestionNotInPaper
)

type ValidationError = apperrors.ValidationError
type ValidationErrors = apperrors.ValidationErrors

// ===== ERROR HELPERS =====

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsWindowViolation(err error) bool {
	return errors.Is(err, ErrWindowViolation)
}

func IsValidation(err error) bool {
	if errors.Is(err, ErrValidation) {
		return true
	}
	var ve ValidationErrors
	return errors.As(err, &ve)
}
