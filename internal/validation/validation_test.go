package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestLoginAcceptsStrongCredentials(t *testing.T) {
	if err := Struct(Login{Email: "user@example.com", Password: "Harvest#2024"}); err != nil {
		t.Fatalf("expected valid login, got %v", err)
	}
}

func TestShortPasswordHasLengthMessage(t *testing.T) {
	err := Struct(Login{Email: "user@example.com", Password: "short"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	msg, ok := verr.Field("password")
	if !ok {
		t.Fatalf("expected password field error, got %+v", verr.Fields)
	}
	if msg != "password must be at least 8 characters" {
		t.Fatalf("expected length-specific message, got %q", msg)
	}
}

func TestRegisterRules(t *testing.T) {
	valid := Register{
		FirstName:       "Ana",
		LastName:        "Silva",
		Email:           "ana@example.com",
		Password:        "Harvest#2024",
		ConfirmPassword: "Harvest#2024",
	}

	tests := []struct {
		name  string
		edit  func(r *Register)
		field string
		want  string
	}{
		{"bad email", func(r *Register) { r.Email = "not-an-email" }, "email", "valid email"},
		{"short password", func(r *Register) { r.Password, r.ConfirmPassword = "Ab#1", "Ab#1" }, "password", "at least 8"},
		{"no uppercase", func(r *Register) { r.Password, r.ConfirmPassword = "harvest#2024", "harvest#2024" }, "password", "uppercase"},
		{"no digit", func(r *Register) { r.Password, r.ConfirmPassword = "Harvest#abcd", "Harvest#abcd" }, "password", "number"},
		{"no special", func(r *Register) { r.Password, r.ConfirmPassword = "Harvest2024", "Harvest2024" }, "password", "special"},
		{"mismatch", func(r *Register) { r.ConfirmPassword = "Harvest#2025" }, "confirm_password", "do not match"},
		{"missing name", func(r *Register) { r.FirstName = "" }, "first_name", "first name is required"},
	}

	if err := Struct(valid); err != nil {
		t.Fatalf("expected valid registration, got %v", err)
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := valid
			tc.edit(&r)
			var verr *Error
			if err := Struct(r); !errors.As(err, &verr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			msg, ok := verr.Field(tc.field)
			if !ok {
				t.Fatalf("expected %s error, got %+v", tc.field, verr.Fields)
			}
			if !strings.Contains(msg, tc.want) {
				t.Fatalf("expected %q in %q", tc.want, msg)
			}
		})
	}
}

func TestVerifyCode(t *testing.T) {
	tests := []struct {
		code string
		ok   bool
	}{
		{"123456", true},
		{"1234", true},
		{"12345678", true},
		{"123", false},
		{"123456789", false},
		{"12a456", false},
		{"", false},
	}
	for _, tc := range tests {
		err := Struct(Verify{Email: "user@example.com", Code: tc.code})
		if (err == nil) != tc.ok {
			t.Fatalf("code %q: expected ok=%v, got %v", tc.code, tc.ok, err)
		}
	}
}

func TestCostCategory(t *testing.T) {
	err := Struct(Cost{FarmID: 1, Category: "fuel", Amount: 10, Date: "2024-05-01"})
	var verr *Error
	if !errors.As(err, &verr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	if _, ok := verr.Field("category"); !ok {
		t.Fatalf("expected category error, got %+v", verr.Fields)
	}
	if verr.UserMessage() != verr.Error() {
		t.Fatalf("user message should match error text")
	}
}
