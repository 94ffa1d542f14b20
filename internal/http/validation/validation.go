// Package validation registers the custom request validation rules on gin's
// validator engine.
package validation

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	phonePattern    = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)
	otpPattern      = regexp.MustCompile(`^[0-9]{6}$`)
	idNumberPattern = regexp.MustCompile(`^[A-Za-z0-9]{4,20}$`)
	countryPattern  = regexp.MustCompile(`^[A-Za-z][A-Za-z .'-]{1,59}$`)
)

var registerOnce sync.Once

// Register installs the custom rules once on gin's default validator. It
// also reports field names using their json tags.
func Register() {
	registerOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		Apply(engine)
	})
}

// Apply installs the custom rules on v.
func Apply(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonTagName)
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(strings.ReplaceAll(fl.Field().String(), " ", ""))
	})
	_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
		return otpPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("idnumber", func(fl validator.FieldLevel) bool {
		return idNumberPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("country", func(fl validator.FieldLevel) bool {
		return countryPattern.MatchString(strings.TrimSpace(fl.Field().String()))
	})
}

func jsonTagName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
