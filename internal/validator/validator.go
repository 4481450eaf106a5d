package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Validator combines struct-tag validation with the catalog rules that tags
// cannot express.
type Validator struct {
	structValidator   *validator.Validate
	questionValidator *QuestionValidator
}

func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator:   structValidator,
		questionValidator: NewQuestionValidator(),
	}
}

// Validate checks struct tags and returns ValidationErrors on failure.
func (v *Validator) Validate(s interface{}) error {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}
	if errs := ToValidationErrors(err); len(errs) > 0 {
		return errs
	}
	return err
}

func (v *Validator) Question() *QuestionValidator {
	return v.questionValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_type", enumValidator(models.QuestionType.Valid))
	validate.RegisterValidation("subject_code", enumValidator(models.SubjectCode.Valid))
	validate.RegisterValidation("paper_type", enumValidator(models.PaperType.Valid))
	validate.RegisterValidation("exam_status", enumValidator(models.ExamStatus.Valid))

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func enumValidator[T ~string](valid func(T) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return valid(T(fl.Field().String()))
	}
}
