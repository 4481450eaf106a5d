package errors

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError describes one rejected field.
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
	Rule    string      `json:"rule,omitempty"`
}

type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "validation failed"
	case 1:
		return fmt.Sprintf("validation failed: %s %s", ve[0].Field, ve[0].Message)
	default:
		fields := make([]string, len(ve))
		for i, e := range ve {
			fields[i] = e.Field
		}
		return fmt.Sprintf("validation failed: %d field errors (%s)", len(ve), strings.Join(fields, ", "))
	}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

func NewValidationErrorWithRule(field, message, rule string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value, Rule: rule}
}

// ToValidationErrors converts validator output into ValidationErrors. Any
// other error yields nil.
func ToValidationErrors(err error) ValidationErrors {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	out := make(ValidationErrors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, ValidationError{
			Field:   fe.Namespace(),
			Message: messageFor(fe),
			Value:   fe.Value(),
			Rule:    fe.Tag(),
		})
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())

	case "question_type":
		return "must be single_correct or multiple_correct"
	case "subject_code":
		return "must be one of: maths, science, history, geography, general_knowledge"
	case "paper_type":
		return "must be real, mock or internal"
	case "exam_status":
		return "must be upcoming, ongoing or completed"

	default:
		return fmt.Sprintf("validation failed for rule '%s'", fe.Tag())
	}
}
