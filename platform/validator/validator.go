// Package validator wraps go-playground/validator with the domain tags the
// API binds against.
package validator

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator is injected into handlers and services that validate input.
type Validator struct {
	v *validator.Validate
}

// New creates a Validator with the custom tags registered:
//
//	naics  a 2 to 6 digit NAICS code or prefix
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("naics", func(fl validator.FieldLevel) bool {
		return IsNAICS(fl.Field().String())
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// IsNAICS reports whether code is a NAICS code or a prefix of one.
func IsNAICS(code string) bool {
	code = strings.TrimSpace(code)
	if len(code) < 2 || len(code) > 6 {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
