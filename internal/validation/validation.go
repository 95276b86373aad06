package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Struct validates s against its `validate` tags and returns a readable,
// semicolon separated message on failure.
func Struct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return format("", err)
	}
	return nil
}

// Var validates a single value. field is used as the subject of the message,
// e.g. Var("idea.title", title, "required") -> "idea.title is required".
func Var(field string, v interface{}, tag string) error {
	if err := validate.Var(v, tag); err != nil {
		return format(field, err)
	}
	return nil
}

func format(field string, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return err
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		name := field
		if name == "" {
			name = strings.ToLower(e.Field())
		}
		msgs = append(msgs, formatFieldError(name, e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(field string, e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, e.Param())
	case "gte":
		return fmt.Sprintf("%s must be >= %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
