package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	playground "github.com/go-playground/validator/v10"
)

// Validator provides validation functionality
type Validator interface {
	Validate(interface{}) error
}

// FieldError is one failed rule, named by the field's json name.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Errors is returned by Validate when at least one rule fails.
type Errors []FieldError

func (e Errors) Error() string {
	parts := make([]string, len(e))
	for i, fe := range e {
		parts[i] = fe.Field + " " + fe.Message
	}
	return strings.Join(parts, "; ")
}

type validator struct {
	v *playground.Validate
}

// CustomValidations are the domain tags understood by New. They are also
// registered on gin's binding engine.
var CustomValidations = map[string]playground.Func{
	"weekday": func(fl playground.FieldLevel) bool {
		return inRange(fl.Field(), 0, 6)
	},
	"timeofday": func(fl playground.FieldLevel) bool {
		return inRange(fl.Field(), 0, 24*60-1)
	},
}

func New() Validator {
	v := playground.New()
	Configure(v)
	return &validator{v: v}
}

// Configure registers the custom validations and json field naming on v.
func Configure(v *playground.Validate) {
	for tag, fn := range CustomValidations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			panic(err)
		}
	}
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

func (v *validator) Validate(obj interface{}) error {
	return Translate(v.v.Struct(obj))
}

// Translate turns playground validation errors, including the ones gin's
// binding returns, into Errors. Other errors pass through unchanged.
func Translate(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs playground.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	out := make(Errors, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, FieldError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe playground.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	case "weekday":
		return "must be a day of the week"
	case "timeofday":
		return "must be a time between 00:00 and 23:59"
	default:
		return fmt.Sprintf("failed on %s", fe.Tag())
	}
}

func inRange(field reflect.Value, lo, hi int64) bool {
	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n := field.Int()
		return n >= lo && n <= hi
	default:
		return false
	}
}
