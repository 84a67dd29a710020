package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("mod16", func(fl validator.FieldLevel) bool {
		return fl.Field().Int()%alignment == 0
	})
	return v
}

// Validate checks every field of p against its legal value set.
func Validate(p EncodingParams) error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate encoding params: %w", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s=%v violates %s=%s", fe.Namespace(), fe.Value(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s=%v violates %s", fe.Namespace(), fe.Value(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid encoding params: %s", strings.Join(parts, "; "))
}
