package validators

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/vrumi/vrumi-backend/pkg/enums"
	pkgerrors "github.com/vrumi/vrumi-backend/pkg/errors"
)

type enumRule struct {
	parse   func(string) error
	message string
}

var enumRules = map[string]enumRule{
	"pass_type": {
		parse:   func(v string) error { _, err := enums.ParsePassType(v); return err },
		message: "must be a valid pass type",
	},
	"discount_type": {
		parse:   func(v string) error { _, err := enums.ParseDiscountType(v); return err },
		message: "must be percentage or fixed",
	},
}

var validate = newValidator()

// newValidator reports fields by their json name and registers the enum
// tags.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			return ""
		case "":
			return f.Name
		}
		return name
	})
	for tag, rule := range enumRules {
		parse := rule.parse
		_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return parse(strings.TrimSpace(fl.Field().String())) == nil
		})
	}
	return v
}

// ValidateStruct runs validate tags and maps failures to a field -> message
// detail map.
func ValidateStruct(dest any) error {
	err := validate.Struct(dest)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[fe.Field()] = validationMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	if rule, ok := enumRules[fe.Tag()]; ok {
		return rule.message
	}
	switch fe.Tag() {
	case "required":
		return "is required"
	case "required_without":
		return fmt.Sprintf("is required when %s is absent", fe.Param())
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "email":
		return "must be a valid email"
	case "uuid", "uuid4":
		return "must be a valid uuid"
	case "url":
		return "must be a valid url"
	}
	return "is invalid"
}
