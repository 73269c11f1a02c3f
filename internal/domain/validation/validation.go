package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	// Name validation - allows letters, spaces, hyphens, apostrophes
	nameRegex = regexp.MustCompile(`^[\p{L}\s\-'\.]{2,100}$`)

	// Role is free text typed by operators, just bounded
	roleMaxLen = 100

	// Language tags as entered ("hindi", "en-IN"); letters plus hyphen
	languageRegex = regexp.MustCompile(`^[\p{L}][\p{L}\-]{1,31}$`)
)

// ValidateName validates a person name
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}

	name = strings.TrimSpace(name)

	if len(name) < 2 {
		return fmt.Errorf("name too short (min 2 characters)")
	}

	if len(name) > 100 {
		return fmt.Errorf("name too long (max 100 characters)")
	}

	if !nameRegex.MatchString(name) {
		return fmt.Errorf("invalid name format")
	}

	return nil
}

// ValidateRole validates an optional caller role label
func ValidateRole(role string) error {
	if role == "" {
		return nil // role is optional
	}

	if len(strings.TrimSpace(role)) > roleMaxLen {
		return fmt.Errorf("role too long (max %d characters)", roleMaxLen)
	}

	return nil
}

// ValidateLanguages validates a caller's language list
func ValidateLanguages(languages []string) error {
	for _, lang := range languages {
		if !languageRegex.MatchString(strings.TrimSpace(lang)) {
			return fmt.Errorf("invalid language tag: %q", lang)
		}
	}
	return nil
}

// ValidateDailyLimit validates a per-caller daily cap (0 means unlimited)
func ValidateDailyLimit(limit int) error {
	if limit < 0 {
		return fmt.Errorf("daily limit cannot be negative")
	}

	if limit > 10000 {
		return fmt.Errorf("daily limit too large (max 10000)")
	}

	return nil
}
