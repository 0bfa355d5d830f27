package domain

import (
	"strings"

	"github.com/rivo/uniseg"
)

// MaxSubscriberNameGraphemes bounds a name by user-perceived characters,
// so "e" followed by a combining accent counts once.
const MaxSubscriberNameGraphemes = 256

// forbiddenNameChars are rejected anywhere in a subscriber name.
const forbiddenNameChars = `/()"<>\{}`

// SubscriberName is a display name that passed validation.
type SubscriberName struct {
	value string
}

// ParseSubscriberName validates s and wraps it. The original text is kept
// as-is; trimming only decides whether the name is blank.
func ParseSubscriberName(s string) (SubscriberName, error) {
	if strings.TrimSpace(s) == "" {
		return SubscriberName{}, &ValidationError{Field: "name", Value: s, Reason: "empty or whitespace only"}
	}
	if uniseg.GraphemeClusterCount(s) > MaxSubscriberNameGraphemes {
		return SubscriberName{}, &ValidationError{Field: "name", Value: s, Reason: "longer than 256 characters"}
	}
	if strings.ContainsAny(s, forbiddenNameChars) {
		return SubscriberName{}, &ValidationError{Field: "name", Value: s, Reason: "contains a forbidden character"}
	}
	return SubscriberName{value: s}, nil
}

// String returns the validated name.
func (n SubscriberName) String() string { return n.value }
