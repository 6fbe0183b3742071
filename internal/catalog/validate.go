package catalog

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sells-group/grant-cli/internal/model"
)

type validationRule func(v *validator.Validate)

func registerFn(tag string, fn func(fl validator.FieldLevel) bool) validationRule {
	return func(v *validator.Validate) {
		_ = v.RegisterValidation(tag, fn)
	}
}

func phaseValidator(fl validator.FieldLevel) bool {
	return model.Phase(fl.Field().Int()).Valid()
}

func newValidator(rules ...validationRule) *validator.Validate {
	v := validator.New()
	for _, rule := range rules {
		rule(v)
	}
	return v
}

func documentRules() []validationRule {
	return []validationRule{
		registerFn("phase", phaseValidator),
	}
}

// validationError flattens validator output into a single ErrValidation error.
func validationError(kind, slug string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return model.Invalidf("catalog: %s %s: %v", kind, slug, err)
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Namespace()+" failed "+fe.Tag())
	}
	return model.Invalidf("catalog: %s %s: %s", kind, slug, strings.Join(fields, "; "))
}
