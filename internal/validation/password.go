package validation

import "strings"

// commonPasswords is the blacklist of frequently breached passwords. Matching
// is case-insensitive and by substring, so "myPassword!" is rejected for
// containing "password".
var commonPasswords = []string{
	"password", "password123", "123456", "12345678", "qwerty", "abc123",
	"monkey", "1234567", "letmein", "trustno1", "dragon", "baseball",
	"iloveyou", "master", "sunshine", "ashley", "bailey", "shadow",
	"superman", "qazwsx", "michael", "football", "123456789", "welcome",
	"admin", "login", "passw0rd", "Password1", "password1", "12345",
}

// keyboardSequences are the ordered runs the sequential-character rule is
// checked against, forward and reversed.
var keyboardSequences = []string{
	"0123456789",
	"abcdefghijklmnopqrstuvwxyz",
	"qwertyuiop",
	"asdfghjkl",
	"zxcvbnm",
}

const passwordSpecialChars = `!@#$%^&*()_+-=[]{};':"\|,.<>/?`

// ValidatePassword enforces the registration password policy: 8-128
// characters, at least 3 of 4 character classes, no blacklisted password as a
// substring, no 3-character keyboard or alphanumeric run (or its reverse),
// and an exact confirmation match when one is supplied (empty confirm means
// no confirmation was sent).
func ValidatePassword(password, confirm string) error {
	if password == "" {
		return &FieldError{Field: "password", Code: CodeRequired, Message: "Password is required"}
	}
	if confirm != "" && password != confirm {
		return &FieldError{Field: "confirm_password", Code: CodeMismatch, Message: "Passwords do not match"}
	}
	if len(password) < 8 {
		return &FieldError{Field: "password", Code: CodeLength, Message: "Password must be at least 8 characters long"}
	}
	if len(password) > 128 {
		return &FieldError{Field: "password", Code: CodeLength, Message: "Password is too long (maximum 128 characters)"}
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(passwordSpecialChars, r):
			hasSpecial = true
		}
	}

	classes := 0
	for _, ok := range []bool{hasUpper, hasLower, hasDigit, hasSpecial} {
		if ok {
			classes++
		}
	}
	if classes < 3 {
		return &FieldError{
			Field:   "password",
			Code:    CodeWeak,
			Message: "Password must contain at least 3 of the following: uppercase letters, lowercase letters, numbers, special characters",
		}
	}

	lower := strings.ToLower(password)
	for _, common := range commonPasswords {
		if strings.Contains(lower, strings.ToLower(common)) {
			return &FieldError{Field: "password", Code: CodeWeak, Message: "Password is too common. Please choose a stronger password"}
		}
	}

	if hasSequentialRun(lower) {
		return &FieldError{Field: "password", Code: CodeWeak, Message: "Password contains sequential characters. Please choose a stronger password"}
	}

	return nil
}

func hasSequentialRun(lower string) bool {
	for _, seq := range keyboardSequences {
		for i := 0; i+3 <= len(seq); i++ {
			run := seq[i : i+3]
			if strings.Contains(lower, run) || strings.Contains(lower, reverse(run)) {
				return true
			}
		}
	}
	return false
}

func reverse(s string) string {
	b := []byte(s)
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return string(b)
}
