package services

import (
	"reflect"
	"strings"

	"feeledger/internal/common"
	"feeledger/internal/models"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

const (
	paymentMethodTag = "payment_method"
	requiredText     = "{0} is required"
)

var (
	validate   *validator.Validate
	translator ut.Translator
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// Money is validated as a number so gt/gte work on decimals.
	validate.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})

	_ = validate.RegisterValidation(paymentMethodTag, func(fl validator.FieldLevel) bool {
		return models.PaymentMethod(fl.Field().String()).Valid()
	})

	methods := make([]string, 0, len(models.PaymentMethods))
	for _, m := range models.PaymentMethods {
		methods = append(methods, string(m))
	}
	registerTranslation(paymentMethodTag, "{0} must be one of: "+strings.Join(methods, ", "), false)
	registerTranslation("required", requiredText, true)
}

func registerTranslation(tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// validateStruct runs the struct tags and converts failures to a
// common.ValidationError keyed by JSON field name.
func validateStruct(v interface{}) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	fields := make([]common.FieldError, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, common.FieldError{Field: fe.Field(), Message: fe.Translate(translator)})
	}
	return common.NewValidationError(fields...)
}
