// Package validation plugs field-name reporting and aliases into gin's
// validator and turns binding failures into the envelope's errors map.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/oksasatya/go-account-service/pkg/helpers"
)

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = helpers.MaxPasswordBytes

var initOnce sync.Once

// Init configures gin's validator once per process. Anything binding structs
// tagged with "pwd" must call it first; validator panics on unknown tags.
func Init() {
	initOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(fieldName)
		v.RegisterAlias("pwd", fmt.Sprintf("min=8,max=%d", MaxPasswordBytes))
	})
}

// fieldName reports a field by its json name, then its form name.
func fieldName(fld reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(fld.Tag.Get(tag), ",")
		switch name {
		case "-":
			return ""
		case "":
			continue
		default:
			return name
		}
	}
	return fld.Name
}

var fixedMessages = map[string]string{
	"required": "is required",
	"email":    "must be a valid email",
	"pwd":      "must be 8 to 72 characters long",
	"alphanum": "must contain alphanumeric characters only",
	"uuid":     "must be a valid UUID",
}

// ToDetails maps a binding error to field -> message. Decoding failures are
// reported under "payload".
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = message(fe)
		}
		return out
	}
	return map[string]string{"payload": payloadProblem(err)}
}

func payloadProblem(err error) string {
	var se *json.SyntaxError
	var ute *json.UnmarshalTypeError
	switch {
	case errors.As(err, &se), errors.As(err, &ute), errors.Is(err, io.ErrUnexpectedEOF):
		return "invalid json"
	case errors.Is(err, io.EOF):
		return "empty body"
	default:
		return "invalid payload"
	}
}

func message(fe validator.FieldError) string {
	if msg, ok := fixedMessages[fe.Tag()]; ok {
		return msg
	}
	param := fe.Param()
	switch fe.Tag() {
	case "required_without":
		return "is required when " + param + " is not present"
	case "min":
		return bound("at least", param, fe.Kind())
	case "max":
		return bound("at most", param, fe.Kind())
	case "oneof":
		return "must be one of [" + strings.Join(strings.Fields(param), ", ") + "]"
	}
	if param != "" {
		return fmt.Sprintf("validation failed for '%s' with parameter '%s'", fe.Tag(), param)
	}
	return fmt.Sprintf("validation failed for '%s'", fe.Tag())
}

func bound(rel, param string, k reflect.Kind) string {
	if isNumberKind(k) {
		return "must be " + rel + " " + param
	}
	return "must be " + rel + " " + param + " characters long"
}

func isNumberKind(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}
