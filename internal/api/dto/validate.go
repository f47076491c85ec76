package dto

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate is shared by every request DTO. Field errors are keyed by JSON name.
var Validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func fieldErrors(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		out["_"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		out[fe.Field()] = describe(fe)
	}
	return out
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		if isNumber(fe.Kind()) {
			return "must be at most " + fe.Param()
		}
		return "must be at most " + fe.Param() + " characters"
	case "min":
		if isNumber(fe.Kind()) {
			return "must be at least " + fe.Param()
		}
		return "must have at least " + fe.Param() + " item(s)"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "uuid":
		return "must be a UUID"
	default:
		return "is invalid"
	}
}

func isNumber(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
