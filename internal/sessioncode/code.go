// Package sessioncode generates and validates the short codes participants
// type to join a session.
package sessioncode

import (
	"fmt"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/mmynk/tabsplit/internal/apperrors"
)

// Alphabet excludes characters that are easy to confuse when read aloud or
// typed from a phone screen (0, O, I).
const Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZ"

// Length is the number of characters in a join code.
const Length = 6

// Generate returns a new random join code, e.g. "A3B7K9".
func Generate() (string, error) {
	code, err := gonanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("failed to generate session code: %w", err)
	}
	return code, nil
}

// Valid reports whether code is a well-formed join code. Input is
// case-insensitive.
func Valid(code string) bool {
	code = strings.ToUpper(code)
	if len(code) != Length {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}

// Normalize trims and upper-cases code and validates it.
func Normalize(code string) (string, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	if !Valid(normalized) {
		return "", apperrors.Validation("session_code", fmt.Sprintf("%q is not a %d-character join code", code, Length))
	}
	return normalized, nil
}
