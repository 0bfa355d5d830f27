package domain

import "fmt"

// ValidationError reports why raw subscriber input was rejected.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%q is not a valid subscriber %s: %s", e.Value, e.Field, e.Reason)
}
