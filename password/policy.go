package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy describes the composition rules enforced on new passwords.
// Each character-class requirement toggles independently.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy requires 12 characters and all four classes.
func DefaultPolicy() Policy {
	return Policy{
		MinLength:      12,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Validate checks candidate against the policy and returns every violated
// rule. username may be empty; when present, passwords containing it as a
// case-insensitive substring are rejected. An empty slice means the
// candidate is acceptable.
func (p Policy) Validate(candidate, username string) []string {
	var violations []string

	if len(candidate) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}

	if p.RequireUpper && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}

	if isCommon(candidate) {
		violations = append(violations, "is too common")
	}

	if username != "" && strings.Contains(strings.ToLower(candidate), strings.ToLower(username)) {
		violations = append(violations, "must not contain the username")
	}

	return violations
}

func isCommon(candidate string) bool {
	_, ok := commonPasswords[strings.ToLower(candidate)]
	return ok
}
