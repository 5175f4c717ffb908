package model

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// ValidateCustomer checks the fields the booking form and the back office require.
func ValidateCustomer(c *Customer) error {
	var ve ValidationError

	if strings.TrimSpace(c.Name) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "name", Message: "is required"})
	}
	if strings.TrimSpace(c.Phone) == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "phone", Message: "is required"})
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		ve.Errors = append(ve.Errors, FieldError{Field: "email", Message: "is required"})
	} else if !ValidEmail(email) {
		ve.Errors = append(ve.Errors, FieldError{Field: "email", Message: fmt.Sprintf("invalid address %q", email)})
	}
	if c.Age != nil && (*c.Age < 0 || *c.Age > 150) {
		ve.Errors = append(ve.Errors, FieldError{Field: "age", Message: fmt.Sprintf("must be between 0 and 150, got %d", *c.Age)})
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateCredentials checks an email/password pair before sign-up.
func ValidateCredentials(email, password string) error {
	var ve ValidationError
	if !ValidEmail(strings.TrimSpace(email)) {
		ve.Errors = append(ve.Errors, FieldError{Field: "email", Message: "must be a valid email address"})
	}
	if len(password) < 6 {
		ve.Errors = append(ve.Errors, FieldError{Field: "password", Message: "must be at least 6 characters"})
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
