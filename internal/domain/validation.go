package domain

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"purchases/internal/core/apperror"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// Validator returns the shared struct validator.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// ValidateStruct validates v by its `validate` tags and converts failures to
// a VALIDATION_ERROR AppError naming the offending fields.
func ValidateStruct(v any) error {
	err := Validator().Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.NewValidation(err.Error())
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, fe.Field()+":"+fe.Tag())
	}
	return apperror.NewValidation("invalid "+strings.Join(fields, ", ")).
		WithDetail("fields", fields)
}
