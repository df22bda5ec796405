package utils

import (
	"errors"
	"fmt"
	"strings"

	"reqgraph/domain/categories"
	"reqgraph/domain/core/valueobjects"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return categories.IsKnown(categories.Category(fl.Field().String()))
	})
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return valueobjects.Handle(fl.Field().String()).IsValid()
	})
	return v
}

// ValidateStruct validates a struct based on its validation tags
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	return nil
}

func formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		msgs = append(msgs, formatFieldError(e))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func formatFieldError(e validator.FieldError) string {
	field := strings.ToLower(e.Field())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "category":
		return fmt.Sprintf("%s is not a known category", field)
	case "handle":
		return fmt.Sprintf("%s must be one of top, right, bottom, left", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}
