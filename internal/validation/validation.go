// Package validation sanitizes and checks user supplied task input before any
// state changes or network calls happen.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/yukikurage/task-sync/internal/models"
)

// Error is a validation failure with a human readable reason.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return e.Reason
}

// IsValidationError reports whether err is, or wraps, a validation failure.
func IsValidationError(err error) bool {
	var vErr *Error
	return errors.As(err, &vErr)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if label := field.Tag.Get("label"); label != "" {
			return label
		}
		return strings.ToLower(field.Name)
	})
	return v
}

type taskInput struct {
	Title       string `label:"title" validate:"required,max=200"`
	Group       string `label:"group" validate:"required,max=50"`
	Description string `label:"description" validate:"max=2000"`
	Priority    string `label:"priority" validate:"omitempty,oneof=low medium high"`
}

type statusInput struct {
	Status string `label:"status" validate:"required,oneof=open in_progress done"`
}

// NewTask returns a sanitized copy of in, or an *Error describing the first
// invalid field.
func NewTask(in models.NewTask) (models.NewTask, error) {
	out := in
	out.Title = SanitizeLine(in.Title)
	out.Group = SanitizeLine(in.Group)
	out.Description = SanitizeText(in.Description)
	out.ParentID = strings.TrimSpace(in.ParentID)

	err := check(taskInput{
		Title:       out.Title,
		Group:       out.Group,
		Description: out.Description,
		Priority:    string(out.Priority),
	})
	if err != nil {
		return models.NewTask{}, err
	}
	return out, nil
}

// Fields returns a sanitized copy of f. Only fields present in the update are
// checked; a present title or group must still be non-empty.
func Fields(f models.TaskFields) (models.TaskFields, error) {
	out := f

	if f.Title != nil {
		title := SanitizeLine(*f.Title)
		if err := checkVar(title, "title", "required,max=200"); err != nil {
			return models.TaskFields{}, err
		}
		out.Title = &title
	}
	if f.Group != nil {
		group := SanitizeLine(*f.Group)
		if err := checkVar(group, "group", "required,max=50"); err != nil {
			return models.TaskFields{}, err
		}
		out.Group = &group
	}
	if f.Description != nil && !f.ClearDescription {
		desc := SanitizeText(*f.Description)
		if err := checkVar(desc, "description", "max=2000"); err != nil {
			return models.TaskFields{}, err
		}
		if desc == "" {
			out.Description = nil
			out.ClearDescription = true
		} else {
			out.Description = &desc
		}
	}
	if f.Priority != nil && !f.ClearPriority {
		if *f.Priority == "" {
			out.Priority = nil
			out.ClearPriority = true
		} else if err := checkVar(string(*f.Priority), "priority", "oneof=low medium high"); err != nil {
			return models.TaskFields{}, err
		}
	}
	if f.Status != nil {
		if err := Status(*f.Status); err != nil {
			return models.TaskFields{}, err
		}
	}
	if f.CompletedAt != nil || f.ClearCompletedAt {
		return models.TaskFields{}, &Error{Field: "completed_at", Reason: "completed_at follows status and cannot be set directly"}
	}
	if f.Order != nil && *f.Order < 0 {
		return models.TaskFields{}, &Error{Field: "order", Reason: "order cannot be negative"}
	}

	return out, nil
}

// Status checks that s is a known task status.
func Status(s models.TaskStatus) error {
	return check(statusInput{Status: string(s)})
}

// SanitizeLine trims s and drops every control character, including newlines.
func SanitizeLine(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// SanitizeText trims s and drops control characters other than newlines and
// tabs. Windows line endings are normalized.
func SanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

func check(input any) error {
	if err := validate.Struct(input); err != nil {
		return translate(err)
	}
	return nil
}

func checkVar(value any, field, tag string) error {
	if err := validate.Var(value, tag); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return &Error{Field: field, Reason: reason(field, fieldErrs[0])}
		}
		return &Error{Field: field, Reason: fmt.Sprintf("%s is invalid", field)}
	}
	return nil
}

func translate(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &Error{Reason: err.Error()}
	}
	fe := fieldErrs[0]
	return &Error{Field: fe.Field(), Reason: reason(fe.Field(), fe)}
}

func reason(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
