package api

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Nixie-Tech-LLC/vidcast/internal/playlist"
)

// RegisterValidators adds the custom binding tags used by the request packets.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	v.RegisterTagNameFunc(fieldName)
	return v.RegisterValidation("storecode", storeCodeFormat)
}

// fieldName reports request fields by their json or form name.
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// storeCodeFormat checks shape only: 2-10 letters or digits once trimmed.
// Whether the store exists is checked against the database by the handlers.
func storeCodeFormat(fl validator.FieldLevel) bool {
	code := playlist.NormalizeStoreCode(fl.Field().String())
	if code == "" {
		return true
	}
	if len(code) < playlist.MinStoreCodeLen || len(code) > playlist.MaxStoreCodeLen {
		return false
	}
	return strings.IndexFunc(code, func(r rune) bool {
		return !(r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_')
	}) < 0
}

// BindError turns a binding failure into a readable 400.
func BindError(err error) *APIError {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			return BadRequest(field + " is required")
		case "storecode":
			return BadRequest("store code must be 2 to 10 letters or digits")
		case "min":
			return BadRequest(field + " must be at least " + fe.Param())
		case "max":
			return BadRequest(field + " must be at most " + fe.Param())
		case "mac":
			return BadRequest(field + " must be a MAC address")
		case "ip":
			return BadRequest(field + " must be an IP address")
		case "email":
			return BadRequest(field + " must be an email address")
		}
		return BadRequest(field + " is invalid")
	}
	return BadRequest(err.Error())
}
