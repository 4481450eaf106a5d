package validator

import (
	"github.com/SAP-F-2025/exam-service/internal/errors"
)

type ValidationError = errors.ValidationError
type ValidationErrors = errors.ValidationErrors

func ToValidationErrors(err error) ValidationErrors {
	return errors.ToValidationErrors(err)
}
