package internal

import (
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/unicode/norm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report the JSON names of failing fields
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldError describes a single field that failed validation
type fieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
	Param string `json:"param,omitempty"`
}

// normalizeText trims the text and brings it into NFC
func normalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// validateStruct validates the given struct and translates failures into a HTTPError listing the failing fields
func validateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return MakeErrorWithData(http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", err)
	}
	details := make([]fieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fieldError{Field: fe.Field(), Rule: fe.Tag(), Param: fe.Param()})
	}
	return MakeErrorWithData(http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed", details)
}
