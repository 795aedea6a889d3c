// Package validator wraps go-playground/validator with the custom rules used
// by request binding and option validation.
package validator

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Custom validation tags
const (
	TagNotBlank = "notblank" // string with at least one non-space rune
	TagPrompt   = "prompt"   // template containing the {{question}} placeholder
)

var (
	once     sync.Once
	validate *validator.Validate
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		registerCustomRules(validate)
	})
	return validate
}

func registerCustomRules(v *validator.Validate) {
	_ = v.RegisterValidation(TagNotBlank, validateNotBlank)
	_ = v.RegisterValidation(TagPrompt, validatePrompt)
}

func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func validatePrompt(fl validator.FieldLevel) bool {
	return strings.Contains(fl.Field().String(), "{{question}}")
}

// RegisterGinRules installs the custom rules on gin's default binding engine
// so `binding:"notblank"` works in request structs.
func RegisterGinRules() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	registerCustomRules(v)
	return nil
}

// Struct validates s against its `validate` tags and returns one error per
// failing field, named by its namespace (e.g. "Options.BaseURL").
func Struct(s any) []error {
	err := instance().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return errs
}

func fieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required", TagNotBlank:
		return fmt.Errorf("%s is required", fe.Namespace())
	case TagPrompt:
		return fmt.Errorf("%s must contain the {{question}} placeholder", fe.Namespace())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	default:
		if fe.Param() != "" {
			return fmt.Errorf("%s failed on %s=%s", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%s failed on %s", fe.Namespace(), fe.Tag())
	}
}
