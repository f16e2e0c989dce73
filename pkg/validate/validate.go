// Package validate runs go-playground/validator rules over request structs
// and flattens the result into a field → message map keyed by JSON name.
//
// Example:
//
//	type Input struct {
//	    Email  string `json:"email"  validate:"required,email,max=255"`
//	    Code   string `json:"code"   validate:"required,len=6,numeric"`
//	    Method string `json:"method" validate:"omitempty,oneof=card apple_pay google_pay"`
//	}
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once sync.Once
	v    *validator.Validate
)

// Engine returns the shared validator, configured to report JSON field names.
func Engine() *validator.Validate {
	once.Do(func() {
		v = validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			switch name {
			case "-":
				return ""
			case "":
				return strings.ToLower(f.Name)
			}
			return name
		})
	})
	return v
}

// Struct validates s. Returns a map of field → message; empty means valid.
// Nested fields are keyed by their dotted path below the root, e.g.
// "items[0].quantity".
func Struct(s interface{}) map[string]string {
	errs := make(map[string]string)

	err := Engine().Struct(s)
	if err == nil {
		return errs
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return errs
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		errs["_"] = err.Error()
		return errs
	}

	for _, fe := range fieldErrs {
		key := fieldKey(fe)
		if _, seen := errs[key]; seen {
			continue
		}
		errs[key] = message(fe)
	}
	return errs
}

// HasErrors returns true when the errs map is non-empty.
func HasErrors(errs map[string]string) bool { return len(errs) > 0 }

// fieldKey drops the root struct name from the namespace.
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return fe.Field()
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	param := fe.Param()

	switch fe.Tag() {
	case "required", "required_without", "required_with":
		return fmt.Sprintf("The %s field is required.", field)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", field)
	case "url", "http_url":
		return fmt.Sprintf("The %s must be a valid URL.", field)
	case "numeric", "number":
		return fmt.Sprintf("The %s field must be numeric.", field)
	case "len":
		return fmt.Sprintf("The %s must be exactly %s characters.", field, param)
	case "min":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("The %s must be at least %s.", field, param)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s must have at least %s items.", field, param)
		}
		return fmt.Sprintf("The %s must be at least %s characters.", field, param)
	case "max":
		if isNumber(fe.Kind()) {
			return fmt.Sprintf("The %s must not be greater than %s.", field, param)
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("The %s must not have more than %s items.", field, param)
		}
		return fmt.Sprintf("The %s must not exceed %s characters.", field, param)
	case "gt":
		return fmt.Sprintf("The %s must be greater than %s.", field, param)
	case "gte":
		return fmt.Sprintf("The %s must be greater than or equal to %s.", field, param)
	case "lt":
		return fmt.Sprintf("The %s must be less than %s.", field, param)
	case "lte":
		return fmt.Sprintf("The %s must be less than or equal to %s.", field, param)
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "latitude", "longitude":
		return fmt.Sprintf("The %s must be a valid %s.", field, fe.Tag())
	}
	return fmt.Sprintf("The %s field is invalid.", field)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
