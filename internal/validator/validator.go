package validator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/adonhq/assessment-backend/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// trans is the singleton English translator for validation errors.
var (
	trans     ut.Translator
	setupOnce sync.Once
)

// Setup registers the validator with English translations on Gin's binding
// engine. Repeated calls are no-ops.
func Setup() {
	setupOnce.Do(setup)
}

func setup() {
	if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
		// Use JSON tag name for field names in error messages.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		// Register English translations.
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		en_translations.RegisterDefaultTranslations(v, trans)

		registerExamID(v)
	}
}

// registerExamID adds the "examid" tag for examination identifiers.
func registerExamID(v *govalidator.Validate) {
	_ = v.RegisterValidation("examid", func(fl govalidator.FieldLevel) bool {
		return model.IsValidExaminationID(fl.Field().String())
	})
	_ = v.RegisterTranslation("examid", trans,
		func(ut ut.Translator) error {
			return ut.Add("examid", "{0} must be 1-50 printable characters", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T("examid", fe.Field())
			return t
		},
	)
}

// TranslateErrors turns a binding error into field name to message pairs.
// Decoding failures are reported under "body" or the offending field,
// never with the decoder's raw text.
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var (
		ve        govalidator.ValidationErrors
		syntaxErr *json.SyntaxError
		typeErr   *json.UnmarshalTypeError
	)
	switch {
	case errors.As(err, &ve):
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
	case errors.Is(err, io.EOF):
		fields["body"] = "request body is required"
	case errors.As(err, &syntaxErr):
		fields["body"] = fmt.Sprintf("malformed JSON at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr) && typeErr.Field != "":
		fields[typeErr.Field] = fmt.Sprintf("%s must be a %s", typeErr.Field, jsonKind(typeErr.Type))
	default:
		fields["body"] = "request body could not be decoded"
	}
	return fields
}

func jsonKind(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Map, reflect.Struct:
		return "object"
	case reflect.Slice, reflect.Array:
		return "array"
	case reflect.Bool:
		return "boolean"
	default:
		return "number"
	}
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst interface{}) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
