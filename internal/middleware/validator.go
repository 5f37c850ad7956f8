package middleware

import (
	"fmt"
	"regexp"
	"strings"
)

// Input validation and sanitization utilities

var (
	tenantPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)
	// UUID with code-hash suffix: uuid-hash
	reportIDPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{4}-[a-f0-9]{12}-[a-f0-9]{12}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// ValidateMode checks the requested audit mode. Empty is allowed (defaults
// to detailed downstream).
func ValidateMode(mode string) error {
	switch strings.ToLower(mode) {
	case "", "detailed", "beginner":
		return nil
	}
	return fmt.Errorf("invalid mode: %s (allowed: detailed, beginner)", mode)
}

// ValidateFilename checks the uploaded contract filename. Empty is allowed
// (pasted code gets a default name); otherwise it must be a plain .sol name.
func ValidateFilename(name string) error {
	if name == "" {
		return nil
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return fmt.Errorf("invalid filename: path separators are not allowed")
	}
	if !strings.HasSuffix(strings.ToLower(name), ".sol") {
		return fmt.Errorf("invalid filename: %s (expected a .sol file)", name)
	}
	return nil
}

// ValidateEmail checks a recipient address shape. Exhaustive RFC parsing is
// left to the mail transport.
func ValidateEmail(addr string) error {
	if addr == "" {
		return fmt.Errorf("email cannot be empty")
	}
	if !emailPattern.MatchString(addr) {
		return fmt.Errorf("invalid email address: %s", addr)
	}
	return nil
}

// ValidateTenantID validates tenant ID format
func ValidateTenantID(tenant string) error {
	if tenant == "" {
		return fmt.Errorf("tenant ID cannot be empty")
	}
	if !tenantPattern.MatchString(tenant) {
		return fmt.Errorf("invalid tenant ID format (alphanumeric, dash, underscore only, max 64 chars)")
	}
	return nil
}

// ValidateReportID validates report ID format
func ValidateReportID(id string) error {
	if id == "" {
		return fmt.Errorf("report ID cannot be empty")
	}
	if !reportIDPattern.MatchString(id) {
		return fmt.Errorf("invalid report ID format")
	}
	return nil
}

// SanitizeString removes dangerous characters from strings
func SanitizeString(input string) string {
	// Remove null bytes
	input = strings.ReplaceAll(input, "\x00", "")

	// Remove control characters
	var result strings.Builder
	for _, r := range input {
		if r >= 32 || r == '\t' || r == '\n' {
			result.WriteRune(r)
		}
	}

	return strings.TrimSpace(result.String())
}

// ValidateLimit validates pagination limit
func ValidateLimit(limit int) int {
	if limit <= 0 {
		return 20 // default
	}
	if limit > 100 {
		return 100 // max limit
	}
	return limit
}

// ValidateDays validates days parameter
func ValidateDays(days int) int {
	if days <= 0 {
		return 7 // default
	}
	if days > 365 {
		return 365 // max 1 year
	}
	return days
}
