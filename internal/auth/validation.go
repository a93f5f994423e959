package auth

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/nhle/lms-client/internal/apiclient"
)

const requiredText = "this field is required"

// inputValidator checks request payloads before anything is sent.
type inputValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newInputValidator() *inputValidator {
	locale := en.New()
	uni := ut.New(locale, locale)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterTranslation(
		"required", translator,
		func(t ut.Translator) error { return t.Add("required", requiredText, true) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T("required", fe.Field())
			return s
		},
	)

	return &inputValidator{validate: validate, translator: translator}
}

// check validates v and returns a KindValidation *apiclient.Error listing
// every failing field.
func (iv *inputValidator) check(op string, v interface{}) error {
	err := iv.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &apiclient.Error{Kind: apiclient.KindValidation, Op: op, Err: err}
	}

	fields := make([]apiclient.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apiclient.FieldError{
			Field:   fe.Field(),
			Message: fe.Translate(iv.translator),
		})
	}
	return &apiclient.Error{
		Kind:    apiclient.KindValidation,
		Op:      op,
		Message: "invalid input",
		Fields:  fields,
	}
}
