// Package foundation holds small generic building blocks shared by the
// installer packages.
package foundation

import (
	"fmt"
	"strings"

	"github.com/WuLonghui/nise-bosh/internal/foundation/errors"
)

// Validator represents a validation function.
type Validator[T any] func(T) ValidationResult

// ValidationResult contains the result of a validation operation.
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// FieldError represents a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// Error implements the error interface.
func (fe FieldError) Error() string {
	if fe.Field != "" {
		return fmt.Sprintf("field '%s': %s", fe.Field, fe.Message)
	}
	return fe.Message
}

// Valid creates a successful validation result.
func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

// Invalid creates a failed validation result with errors.
func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Valid: false, Errors: errs}
}

// Combine merges multiple validation results.
func (vr ValidationResult) Combine(other ValidationResult) ValidationResult {
	if vr.Valid && other.Valid {
		return Valid()
	}
	var all []FieldError
	all = append(all, vr.Errors...)
	all = append(all, other.Errors...)
	return Invalid(all...)
}

// ToError converts an invalid result into a validation ClassifiedError. The
// message of the first failure is used; every failing field is added to the
// error context.
func (vr ValidationResult) ToError() error {
	if vr.Valid || len(vr.Errors) == 0 {
		return nil
	}

	b := errors.ValidationError(vr.Errors[0].Message)
	if len(vr.Errors) > 1 {
		messages := make([]string, 0, len(vr.Errors))
		for _, fe := range vr.Errors {
			messages = append(messages, fe.Error())
		}
		b = errors.ValidationError(strings.Join(messages, "; "))
	}
	for _, fe := range vr.Errors {
		if fe.Field != "" {
			b = b.WithContext(fe.Field, fe.Value)
		}
	}
	return b.Build()
}

// ValidatorChain allows chaining multiple validators.
type ValidatorChain[T any] struct {
	validators []Validator[T]
}

// NewValidatorChain creates a new validator chain.
func NewValidatorChain[T any](validators ...Validator[T]) *ValidatorChain[T] {
	return &ValidatorChain[T]{validators: validators}
}

// Add appends a validator to the chain.
func (vc *ValidatorChain[T]) Add(validator Validator[T]) *ValidatorChain[T] {
	vc.validators = append(vc.validators, validator)
	return vc
}

// Validate runs all validators in the chain.
func (vc *ValidatorChain[T]) Validate(value T) ValidationResult {
	result := Valid()
	for _, validator := range vc.validators {
		result = result.Combine(validator(value))
	}
	return result
}

// Check builds a validator from a predicate over a field extracted from T.
func Check[T, F any](field, code, message string, get func(T) F, ok func(F) bool) Validator[T] {
	return func(value T) ValidationResult {
		v := get(value)
		if ok(v) {
			return Valid()
		}
		return Invalid(FieldError{Field: field, Code: code, Message: message, Value: v})
	}
}

// NotBlank reports whether s has non-space content.
func NotBlank(s string) bool { return strings.TrimSpace(s) != "" }

// NonNegative reports whether n >= 0.
func NonNegative(n int) bool { return n >= 0 }
