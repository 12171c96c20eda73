// Package validation registers the custom binding rules used by request structs and
// turns validator errors into short client-facing messages.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/communityhub/backend/internal/models"
)

// Register adds custom rules to v and reports fields by their json names.
func Register(v *validator.Validate) {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("payment_method", func(fl validator.FieldLevel) bool {
		return models.ValidPaymentMethod(fl.Field().String())
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// RegisterGin installs the custom rules on gin's default binding engine.
func RegisterGin() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		Register(v)
	}
}

// Message converts a bind error into a short message naming the first bad field.
func Message(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "invalid request body"
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required", "notblank":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "payment_method":
		return field + " must be one of " + strings.Join(models.PaymentMethods, ", ")
	case "oneof":
		return field + " must be one of " + fe.Param()
	case "min", "gte":
		return field + " must be at least " + fe.Param()
	case "max", "lte":
		return field + " must be at most " + fe.Param()
	case "url":
		return field + " must be a valid URL"
	case "uuid":
		return field + " must be a valid id"
	}
	return field + " is invalid"
}
