// Package validation wraps go-playground/validator and turns its errors into
// user-facing messages.
package validation

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mcclellann/credikhaata/pkg/models"
)

var phoneRegexp = regexp.MustCompile(`^\d{10}$`)

// Messages maps "field.tag" (field is the json name) to the message shown
// for that failure.
type Messages map[string]string

// Validator validates input structs.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	// Exactly ten digits, nothing else.
	v.RegisterValidation("phone10", func(fl validator.FieldLevel) bool {
		return phoneRegexp.MatchString(fl.Field().String())
	})

	return &Validator{validate: v}
}

// Struct validates s and records every failing field in verr, using msgs
// for the wording. Failures without a message fall back to a generic one.
func (v *Validator) Struct(s interface{}, msgs Messages, verr *models.ValidationError) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return err
	}
	for _, fe := range fieldErrors {
		msg, ok := msgs[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is invalid"
		}
		verr.Add(fe.Field(), msg)
	}
	return nil
}
