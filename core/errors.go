package core

import (
	"database/sql"
	"strings"

	"github.com/pkg/errors"
)

// FieldError pins a validation message on one input field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError reports bad input. Err, when set, is the summary; Fields break it down.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{Err: err, Fields: flds}
}

func (ve *ValidationError) Error() string {
	if ve.Err != nil {
		return ve.Err.Error()
	}
	msgs := make([]string, 0, len(ve.Fields))
	for _, fe := range ve.Fields {
		msgs = append(msgs, fe.Field+": "+fe.Error)
	}
	return strings.Join(msgs, "; ")
}

func (ve *ValidationError) Unwrap() error {
	return ve.Err
}

// FieldMap indexes the messages by field; nil without fields.
// The first message wins when a field repeats.
func (ve *ValidationError) FieldMap() map[string]string {
	if len(ve.Fields) == 0 {
		return nil
	}
	m := make(map[string]string, len(ve.Fields))
	for _, fe := range ve.Fields {
		if _, ok := m[fe.Field]; !ok {
			m[fe.Field] = fe.Error
		}
	}
	return m
}

// IsFatal tells whether err leaves the process without a usable database,
// in which case the API stops instead of failing every request.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return errors.Cause(err) == sql.ErrConnDone || errors.Is(err, sql.ErrConnDone)
}
