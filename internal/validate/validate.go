// Package validate checks request payloads with struct tags and reports
// every field violation at once.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/storydesk/storydesk/internal/model"
)

// ErrValidation matches any *Error via errors.Is.
var ErrValidation = errors.New("validation failed")

// Error carries all field-level violations of a payload.
type Error struct {
	Fields []model.FieldError
}

func (e *Error) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + " " + f.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *Error) Is(target error) bool { return target == ErrValidation }

// Fieldf builds a single-field Error.
func Fieldf(field, format string, args ...interface{}) *Error {
	return &Error{Fields: []model.FieldError{{Field: field, Message: fmt.Sprintf(format, args...)}}}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var ve *Error
	ok := errors.As(err, &ve)
	return ve, ok
}

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON field names rather than Go field names.
	val.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	return val
}

// Struct validates s against its `validate` tags. It returns nil or an
// *Error listing every violation.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := &Error{Fields: make([]model.FieldError, 0, len(verrs))}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, model.FieldError{
			Field:   fe.Field(),
			Message: message(fe),
		})
	}
	return out
}

// Merge combines several validation results into one, preserving order.
// Non-validation errors are returned as-is.
func Merge(errs ...error) error {
	var out Error
	for _, err := range errs {
		if err == nil {
			continue
		}
		ve, ok := As(err)
		if !ok {
			return err
		}
		out.Fields = append(out.Fields, ve.Fields...)
	}
	if len(out.Fields) == 0 {
		return nil
	}
	return &out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "url":
		return "must be a valid URL"
	case "alphanum":
		return "must contain only letters and digits"
	default:
		return "is invalid (" + fe.Tag() + ")"
	}
}
