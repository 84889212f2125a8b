package validator

import (
	"strings"
	"testing"
)

func TestValidateRegister(t *testing.T) {
	errs := ValidateRegister("ana@example.com", "ana_k", "Ana K", "Sup3rSecret")
	if errs.HasErrors() {
		t.Errorf("valid input rejected: %v", errs)
	}

	errs = ValidateRegister("not-an-email", "a!", "A", "short")
	for _, field := range []string{"email", "username", "display_name", "password"} {
		if _, ok := errs[field]; !ok {
			t.Errorf("missing error for %s", field)
		}
	}
}

func TestValidatePasswordComposition(t *testing.T) {
	errs := ValidateRegister("ana@example.com", "ana_k", "Ana K", "alllowercase1")
	if msg, ok := errs["password"]; !ok || !strings.Contains(msg, "uppercase") {
		t.Errorf("weak password accepted or wrong message: %v", errs)
	}
}

func TestValidateLogin(t *testing.T) {
	if errs := ValidateLogin("ana@example.com", "whatever"); errs.HasErrors() {
		t.Errorf("valid login rejected: %v", errs)
	}
	errs := ValidateLogin("", "")
	if _, ok := errs["email"]; !ok {
		t.Error("missing email error")
	}
	if _, ok := errs["password"]; !ok {
		t.Error("missing password error")
	}
}

func TestValidateGroup(t *testing.T) {
	if errs := ValidateGroup("Study Group", "exam prep", "public"); errs.HasErrors() {
		t.Errorf("valid group rejected: %v", errs)
	}
	if errs := ValidateGroup("", "", "sorta-public"); len(errs) != 3 {
		t.Errorf("expected 3 errors, got %v", errs)
	}
	// Empty visibility falls back to a default downstream.
	if errs := ValidateGroup("ok", "fine", ""); errs.HasErrors() {
		t.Errorf("empty visibility should pass: %v", errs)
	}
}

func TestValidateMessage(t *testing.T) {
	if errs := ValidateMessage("hello", false); errs.HasErrors() {
		t.Errorf("plain text rejected: %v", errs)
	}
	if errs := ValidateMessage("", true); errs.HasErrors() {
		t.Errorf("attachment-only send rejected: %v", errs)
	}
	if errs := ValidateMessage("  \n ", false); !errs.HasErrors() {
		t.Error("whitespace-only send accepted")
	}
	if errs := ValidateMessage(strings.Repeat("x", 5000), false); !errs.HasErrors() {
		t.Error("oversized message accepted")
	}
}
