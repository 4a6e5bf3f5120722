package middleware

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/suteetoe/strategy-service/internal/model"
)

// RequestValidator is installed as echo's Validator
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator creates the validator and registers the domain tags
func NewRequestValidator() *RequestValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("strategic_line", func(fl validator.FieldLevel) bool {
		return model.IsStrategicLine(fl.Field().String())
	})
	_ = v.RegisterValidation("initiative_status", func(fl validator.FieldLevel) bool {
		return model.IsInitiativeStatus(fl.Field().String())
	})
	_ = v.RegisterValidation("expert_id", func(fl validator.FieldLevel) bool {
		_, ok := model.FindExpert(fl.Field().String())
		return ok
	})
	_ = v.RegisterValidation("note_kind", func(fl validator.FieldLevel) bool {
		return model.IsNoteKind(fl.Field().String())
	})

	return &RequestValidator{validate: v}
}

// Validate implements echo.Validator
func (v *RequestValidator) Validate(i interface{}) error {
	return v.validate.Struct(i)
}

// ValidationMessage turns a validation error into a message for the client
func ValidationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid request"
	}

	fe := verrs[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "strategic_line":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(model.StrategicLines, ", "))
	case "initiative_status":
		return fmt.Sprintf("%s must be one of: %s", field, strings.Join(model.InitiativeStatuses, ", "))
	case "expert_id":
		return fmt.Sprintf("%s is not a known expert", field)
	case "note_kind":
		return fmt.Sprintf("%s must be %s or %s", field, model.NoteAlternative, model.NoteCounterpoint)
	}
	return fmt.Sprintf("%s is invalid", field)
}
