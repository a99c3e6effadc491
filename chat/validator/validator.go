// Package validator checks payloads crossing into the core — realtime events
// and REST responses — against the contract the core expects. A failure here
// means the surrounding application broke the contract, not a runtime
// condition to recover from.
package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the underlying struct validation library.
type Validator struct {
	cli *validator.Validate
}

// New returns a ready Validator.
func New() *Validator {
	return &Validator{
		cli: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// A FieldError names one field that failed a validation rule.
type FieldError struct {
	Field string
	Rule  string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %s violates rule %q", e.Field, e.Rule)
}

// Check validates a struct and returns one FieldError per failing field.
func (v *Validator) Check(s any) []FieldError {
	err := v.cli.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "-", Rule: err.Error()}}
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{Field: fe.StructField(), Rule: fe.Tag()})
	}
	return out
}

// Err collapses Check into a single error, nil when the struct is valid.
func (v *Validator) Err(s any) error {
	errs := v.Check(s)
	if len(errs) == 0 {
		return nil
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Errorf("invalid payload: %s", strings.Join(parts, "; "))
}
