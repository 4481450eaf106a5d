package models

import (
	"database/sql/driver"
	"fmt"
)

// scanEnum decodes a database value into a closed string enum and rejects
// anything outside the known variants.
func scanEnum[T ~string](dst *T, value interface{}, valid func(T) bool, kind string) error {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
		return fmt.Errorf("%s: null value", kind)
	default:
		return fmt.Errorf("%s: unsupported type %T", kind, value)
	}

	candidate := T(raw)
	if !valid(candidate) {
		return fmt.Errorf("%s: unknown value %q", kind, raw)
	}
	*dst = candidate
	return nil
}

func valueEnum[T ~string](v T, valid func(T) bool, kind string) (driver.Value, error) {
	if !valid(v) {
		return nil, fmt.Errorf("%s: unknown value %q", kind, string(v))
	}
	return string(v), nil
}

// SubjectCode tags a question with the subject it is ranked under.
type SubjectCode string

const (
	SubjectMaths            SubjectCode = "maths"
	SubjectScience          SubjectCode = "science"
	SubjectHistory          SubjectCode = "history"
	SubjectGeography        SubjectCode = "geography"
	SubjectGeneralKnowledge SubjectCode = "general_knowledge"
)

func (s SubjectCode) Valid() bool {
	switch s {
	case SubjectMaths, SubjectScience, SubjectHistory, SubjectGeography, SubjectGeneralKnowledge:
		return true
	}
	return false
}

func (s *SubjectCode) Scan(value interface{}) error {
	return scanEnum(s, value, SubjectCode.Valid, "subject code")
}

func (s SubjectCode) Value() (driver.Value, error) {
	return valueEnum(s, SubjectCode.Valid, "subject code")
}
