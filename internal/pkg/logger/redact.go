package logger

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const redacted = "[REDACTED]"

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

// redactField masks a value according to its key. Token keys are dropped
// entirely, email and name keys are partially masked, and any address found
// inside other values is masked in place.
func redactField(key, val string) string {
	key = strings.ToLower(key)
	switch {
	case strings.Contains(key, "token"):
		return redacted
	case strings.Contains(key, "email"):
		return RedactEmail(val)
	case strings.HasSuffix(key, "_name"):
		return RedactName(val)
	}
	return emailPattern.ReplaceAllStringFunc(val, RedactEmail)
}

// RedactEmail masks an email address for safe logging.
// "john.doe@example.com" → "jo***@example.com"
// Local parts of two characters or fewer are fully masked.
func RedactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return "***@***"
	}
	local, domain := email[:at], email[at+1:]
	if utf8.RuneCountInString(local) > 2 {
		r := []rune(local)
		return string(r[:2]) + "***@" + domain
	}
	return "***@" + domain
}

// RedactName keeps the first character of a person's name.
func RedactName(name string) string {
	r, size := utf8.DecodeRuneInString(strings.TrimSpace(name))
	if size == 0 {
		return ""
	}
	return string(r) + "***"
}
