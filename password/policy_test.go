package password

import (
	"strings"
	"testing"
)

func TestDefaultPolicyAcceptsStrongPassword(t *testing.T) {
	policy := DefaultPolicy()

	if violations := policy.Validate("Tr0ub4dor&3xyz", "alice"); len(violations) != 0 {
		t.Fatalf("expected acceptance, got %v", violations)
	}
}

func TestValidateReportsAllViolationsAtOnce(t *testing.T) {
	policy := DefaultPolicy()

	violations := policy.Validate("password1234", "alice")
	if len(violations) < 2 {
		t.Fatalf("expected at least 2 violations, got %v", violations)
	}
	joined := strings.Join(violations, "; ")
	for _, want := range []string{"uppercase", "special", "common"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected a violation mentioning %q, got %v", want, violations)
		}
	}
}

func TestValidateLength(t *testing.T) {
	policy := DefaultPolicy()

	violations := policy.Validate("Ab1!", "")
	joined := strings.Join(violations, "; ")
	if !strings.Contains(joined, "at least 12 characters") {
		t.Fatalf("expected length violation, got %v", violations)
	}
}

func TestValidateRejectsUsernameSubstring(t *testing.T) {
	policy := DefaultPolicy()

	violations := policy.Validate("Sup3r-ALICE-pass!", "alice")
	joined := strings.Join(violations, "; ")
	if !strings.Contains(joined, "username") {
		t.Fatalf("expected username violation, got %v", violations)
	}

	// Empty username disables the check.
	if violations := policy.Validate("Sup3r-ALICE-pass!", ""); len(violations) != 0 {
		t.Fatalf("expected acceptance without username, got %v", violations)
	}
}

func TestValidateCommonPasswordCaseInsensitive(t *testing.T) {
	policy := Policy{MinLength: 8}

	violations := policy.Validate("PaSsWoRd1234", "")
	joined := strings.Join(violations, "; ")
	if !strings.Contains(joined, "common") {
		t.Fatalf("expected common-password violation, got %v", violations)
	}
}

func TestValidateClassToggles(t *testing.T) {
	policy := Policy{MinLength: 4, RequireDigit: true}

	if violations := policy.Validate("abcd1", ""); len(violations) != 0 {
		t.Fatalf("expected acceptance with only digit required, got %v", violations)
	}
	violations := policy.Validate("abcde", "")
	if len(violations) != 1 || !strings.Contains(violations[0], "digit") {
		t.Fatalf("expected single digit violation, got %v", violations)
	}
}
