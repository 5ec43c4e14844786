package lead

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"storefront/internal/domain"
)

// FormOptions lists the choices the brief form offers.
type FormOptions struct {
	Services       []string `json:"services"`
	ContactMethods []string `json:"contactMethods"`
	BudgetRanges   []string `json:"budgetRanges"`
}

func Options() FormOptions {
	return FormOptions{
		Services:       []string{"custom-web-app", "custom-landing-page", "custom-tracker", "custom-prompt-pack"},
		ContactMethods: []string{"telegram", "discord", "whatsapp", "instagram", "email"},
		BudgetRanges:   []string{"<1k", "1k-3k", "3k-10k", "10k+"},
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// validationError converts validator output into per-field messages keyed by JSON name.
func validationError(err error) error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	fields := make(map[string]string, len(errs))
	for _, fe := range errs {
		fields[fe.Field()] = message(fe)
	}
	return domain.NewValidationError(fields)
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		if fe.Kind() == reflect.Bool {
			return "must be accepted"
		}
		return "is required"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "datetime":
		return "must be a date (YYYY-MM-DD)"
	default:
		return "is invalid"
	}
}
