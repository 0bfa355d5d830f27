package domain

import (
	"github.com/go-playground/validator/v10"
)

var emailValidator = validator.New()

// SubscriberEmail is an address that passed a syntactic email check.
// Deliverability is never verified here.
type SubscriberEmail struct {
	value string
}

// ParseSubscriberEmail validates s against the email address grammar.
func ParseSubscriberEmail(s string) (SubscriberEmail, error) {
	if err := emailValidator.Var(s, "required,email"); err != nil {
		return SubscriberEmail{}, &ValidationError{Field: "email", Value: s, Reason: "not a valid email address"}
	}
	return SubscriberEmail{value: s}, nil
}

// String returns the validated address.
func (e SubscriberEmail) String() string { return e.value }
