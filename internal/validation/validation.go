// Package validation holds the pure field validators for registration input.
// Validators return nil on success or a *FieldError describing the first
// rule the value broke. They never touch storage.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldError identifies which field failed and why. Code is a stable
// machine-readable identifier; Message is safe to show to the client.
type FieldError struct {
	Field   string
	Code    string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Stable FieldError codes.
const (
	CodeRequired  = "required"
	CodeLength    = "length"
	CodeFormat    = "format"
	CodeStateCode = "state_code"
	CodeChecksum  = "checksum"
	CodeWeak      = "weak"
	CodeMismatch  = "mismatch"
)

var (
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9.!#$%&'*+/=?^_` + "`" + `{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)

	indianPhoneRegex = regexp.MustCompile(`^[6-9]\d{9}$`)
	e164PhoneRegex   = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)
	phoneNoiseRegex  = regexp.MustCompile(`[\s\-()]`)

	nameRegex = regexp.MustCompile(`^[a-zA-Z\s\-']+$`)
)

// ValidateEmail checks basic RFC 5322 address grammar and an overall length
// cap of 254 characters.
func ValidateEmail(email string) error {
	if email == "" {
		return &FieldError{Field: "email", Code: CodeRequired, Message: "Email is required"}
	}
	if len(email) > 254 {
		return &FieldError{Field: "email", Code: CodeLength, Message: "Email is too long"}
	}
	if !emailRegex.MatchString(email) {
		return &FieldError{Field: "email", Code: CodeFormat, Message: "Invalid email format"}
	}
	return nil
}

// NormalizePhone strips spaces, dashes and parentheses from a phone number.
func NormalizePhone(phone string) string {
	return phoneNoiseRegex.ReplaceAllString(phone, "")
}

// ValidatePhone accepts 10-digit Indian mobile numbers (leading 6-9) or
// E.164 international numbers after normalization.
func ValidatePhone(phone string) error {
	if phone == "" {
		return &FieldError{Field: "phone", Code: CodeRequired, Message: "Phone number is required"}
	}
	clean := NormalizePhone(phone)
	if indianPhoneRegex.MatchString(clean) || e164PhoneRegex.MatchString(clean) {
		return nil
	}
	return &FieldError{
		Field:   "phone",
		Code:    CodeFormat,
		Message: "Invalid phone number format. Use 10-digit Indian format (e.g., 9876543210) or E.164 format (e.g., +919876543210)",
	}
}

// ValidateName checks a person-name field: 2-100 characters, letters,
// spaces, hyphens and apostrophes only. field names the field in messages
// ("First name", "Last name").
func ValidateName(field, value string) error {
	key := strings.ReplaceAll(strings.ToLower(field), " ", "_")
	if strings.TrimSpace(value) == "" {
		return &FieldError{Field: key, Code: CodeRequired, Message: field + " is required"}
	}
	if len(value) < 2 {
		return &FieldError{Field: key, Code: CodeLength, Message: field + " must be at least 2 characters long"}
	}
	if len(value) > 100 {
		return &FieldError{Field: key, Code: CodeLength, Message: field + " is too long (maximum 100 characters)"}
	}
	if !nameRegex.MatchString(value) {
		return &FieldError{Field: key, Code: CodeFormat, Message: field + " can only contain letters, spaces, hyphens, and apostrophes"}
	}
	return nil
}
