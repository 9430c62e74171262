package validation

import (
	"regexp"
	"strconv"
	"strings"
)

// gstnAlphabet is the base-36 character set the GSTN check digit is computed
// over.
const gstnAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Structure: 2-digit state code, 10-character PAN, entity number, the literal
// 'Z', check character. Example: 27AAPFU0939F1ZV.
var gstnRegex = regexp.MustCompile(`^[0-3][0-9][A-Z]{5}[0-9]{4}[A-Z][1-9A-Z]Z[0-9A-Z]$`)

// NormalizeGSTN strips spaces and upper-cases a GSTN candidate.
func NormalizeGSTN(gstn string) string {
	return strings.ToUpper(strings.ReplaceAll(gstn, " ", ""))
}

// ValidateGSTN checks a 15-character GST identification number: length,
// structural format, state code range and the base-36 Luhn check character.
// The returned FieldError's Code distinguishes checksum failures from
// structural ones.
func ValidateGSTN(gstn string) error {
	if gstn == "" {
		return &FieldError{Field: "gstn", Code: CodeRequired, Message: "GSTN is required"}
	}

	clean := NormalizeGSTN(gstn)

	if len(clean) != 15 {
		return &FieldError{Field: "gstn", Code: CodeLength, Message: "GSTN must be exactly 15 characters"}
	}
	if !gstnRegex.MatchString(clean) {
		return &FieldError{Field: "gstn", Code: CodeFormat, Message: "Invalid GSTN format. GSTN should follow the format: 27AAPFU0939F1ZV"}
	}

	stateCode, err := strconv.Atoi(clean[:2])
	if err != nil || stateCode < 1 || stateCode > 37 {
		return &FieldError{Field: "gstn", Code: CodeStateCode, Message: "Invalid state code in GSTN"}
	}

	check, ok := GSTNCheckCharacter(clean[:14])
	if !ok || check != clean[14] {
		return &FieldError{Field: "gstn", Code: CodeChecksum, Message: "Invalid GSTN checksum"}
	}

	return nil
}

// GSTNCheckCharacter computes the Luhn-36 check character for the first 14
// characters of a GSTN. Every second character counted from the right is
// doubled in base 36, digit-folded, and summed; the check character encodes
// the sum's complement mod 36. ok is false when prefix contains characters
// outside the base-36 alphabet or has the wrong length.
func GSTNCheckCharacter(prefix string) (byte, bool) {
	if len(prefix) != 14 {
		return 0, false
	}

	sum := 0
	for i := 0; i < 14; i++ {
		value := strings.IndexByte(gstnAlphabet, prefix[i])
		if value < 0 {
			return 0, false
		}
		if (14-i)%2 == 0 {
			value *= 2
		}
		if value > 35 {
			value = value/36 + value%36
		}
		sum += value
	}

	return gstnAlphabet[(36-sum%36)%36], true
}
