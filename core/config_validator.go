package core

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-playground/validator/v10"
)

var configValidator = newConfigValidator()

// newConfigValidator reports fields by their env tag so errors name the
// variable a user would set.
func newConfigValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("env"); name != "" {
			return name
		}
		return f.Name
	})
	return v
}

// ValidateConfig range-checks a Config against its validate tags. The first
// violation, in field order, is returned as a *ConfigError.
func ValidateConfig(c *Config) error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("validate config: %w", err)
	}
	fe := verrs[0]
	return ErrOutOfRange(fe.Field(), fmt.Sprint(fe.Value()), describeRule(c, fe))
}

// describeRule renders the failed constraint as the allowed range.
func describeRule(c *Config, fe validator.FieldError) string {
	switch fe.Tag() {
	case "gte":
		return ">= " + fe.Param()
	case "gt":
		return "> " + fe.Param()
	case "lte":
		return "<= " + fe.Param()
	case "lt":
		return "< " + fe.Param()
	case "ltefield":
		return fmt.Sprintf("<= %s (%d)", fe.Param(), c.ContextSize)
	case "ltfield":
		return fmt.Sprintf("< %s (%d)", fe.Param(), c.ContextSize)
	default:
		return fe.Tag() + "=" + fe.Param()
	}
}
