// Package validate provides centralized input validation for the search
// API's user-supplied parameters.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrEmpty             = errors.New("string is empty")
)

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length (0 = no minimum)
	MaxLength      int            // Maximum length (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if
// validation fails. Lengths are counted in characters, not bytes.
func String(s string, constraints StringConstraints) (string, error) {
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)

	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// MaxQueryLength bounds free-text search queries.
const MaxQueryLength = 200

// SearchQuery validates a free-text search query:
// - up to 200 characters
// - empty permitted (the ranking path browses the full catalog)
func SearchQuery(q string) (string, error) {
	return String(q, StringConstraints{
		MaxLength:  MaxQueryLength,
		AllowEmpty: true,
		TrimSpace:  true,
	})
}

// CategoryName validates a category name parameter:
// - 1-100 characters
// - Letters, numbers, spaces, ampersand, dash, underscore, period only
func CategoryName(name string) (string, error) {
	pattern := regexp.MustCompile(`^[A-Za-z0-9 &_\-\.]+$`)
	return String(name, StringConstraints{
		MinLength:      1,
		MaxLength:      100,
		AllowedPattern: pattern,
		TrimSpace:      true,
	})
}
