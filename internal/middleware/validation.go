package middleware

import (
	"errors"
	"unicode/utf8"
)

// ValidateAccessID validates a tenant access id.
func ValidateAccessID(id string) error {
	if len(id) == 0 {
		return errors.New("access ID cannot be empty")
	}
	if len(id) > 64 {
		return errors.New("access ID exceeds maximum length")
	}
	return nil
}

// ValidateQuestion validates question content.
func ValidateQuestion(content string) error {
	if len(content) == 0 {
		return errors.New("question cannot be empty")
	}
	if len(content) > 100000 { // ~100KB limit
		return errors.New("question exceeds maximum length")
	}
	if !utf8.ValidString(content) {
		return errors.New("question must be valid UTF-8")
	}
	return nil
}

// ValidatePersona validates a persona override block.
func ValidatePersona(persona string) error {
	if len(persona) > 8192 {
		return errors.New("persona exceeds maximum length")
	}
	if !utf8.ValidString(persona) {
		return errors.New("persona must be valid UTF-8")
	}
	return nil
}

// ValidateTemperature validates a model temperature.
func ValidateTemperature(t float64) error {
	if t < 0.0 || t > 1.0 {
		return errors.New("temperature must be between 0.0 and 1.0")
	}
	return nil
}
