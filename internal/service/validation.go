package service

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks an action the entity's current state does not allow.
	ErrConflict = errors.New("conflict")
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists the problems with a submitted form.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.UserMessage()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// UserMessage is the first problem, which is what a form shows.
func (e *ValidationError) UserMessage() string {
	if len(e.Fields) == 0 {
		return "Please fill in all required fields."
	}
	return e.Fields[0].Message
}

func invalid(field, message string) error {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// StateError rejects an action locally because of the entity's status.
type StateError struct {
	Message string
}

func (e *StateError) Error() string       { return e.Message }
func (e *StateError) Is(target error) bool { return target == ErrConflict }
func (e *StateError) UserMessage() string { return e.Message }

func conflict(message string) error {
	return &StateError{Message: message}
}

func validateStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := &ValidationError{Fields: make([]FieldError, 0, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return humanize(fe.Field()) + " is required"
	case "required_with":
		return "Current password is required to change password"
	case "email":
		return "Please enter a valid email address"
	case "min":
		if strings.Contains(strings.ToLower(fe.Field()), "password") {
			return "Password must be at least " + fe.Param() + " characters long"
		}
		return humanize(fe.Field()) + " is too short"
	case "max":
		return humanize(fe.Field()) + " is too long"
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return humanize(fe.Field()) + " must be one of " + fe.Param()
	default:
		return humanize(fe.Field()) + " is invalid"
	}
}

// humanize turns a json field name like vehicleNumber into "Vehicle number".
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteString(strings.ToUpper(string(r)))
		case r >= 'A' && r <= 'Z':
			b.WriteByte(' ')
			b.WriteString(strings.ToLower(string(r)))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
