package security

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

var otpRange = big.NewInt(900000)

// GenerateOTP returns a uniformly distributed 6-digit verification code in
// [100000, 999999], drawn from crypto/rand.
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpRange)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// RandomHexUpper returns byteLength random bytes hex-encoded in upper case.
func RandomHexUpper(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("length must be positive")
	}
	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random suffix: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
