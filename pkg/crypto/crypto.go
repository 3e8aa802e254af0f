package crypto

import (
	"crypto/rand"
	"fmt"
)

const (
	// CodeLength is the length of a membership code.
	CodeLength   = 12
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// Largest multiple of len(codeAlphabet) that fits in a byte; bytes at or
	// above it are rejected so every symbol is equally likely.
	codeByteLimit = 256 - 256%len(codeAlphabet)
)

// GenerateMembershipCode returns a cryptographically random 12-character
// code over [A-Z0-9].
func GenerateMembershipCode() (string, error) {
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength*2)
	for len(code) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeByteLimit {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}

// IsMembershipCode reports whether s is exactly 12 uppercase letters or digits.
func IsMembershipCode(s string) bool {
	if len(s) != CodeLength {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
