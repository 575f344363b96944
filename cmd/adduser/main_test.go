package main

import "testing"

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		ok    bool
	}{
		{"ann@example.com", true},
		{"first.last+bets@mail.co.uk", true},
		{"", false},
		{"not-an-email", false},
		{"ann@localhost", false},
	}
	for _, tt := range tests {
		err := validateEmail(tt.email)
		if (err == nil) != tt.ok {
			t.Errorf("validateEmail(%q) = %v, want ok=%v", tt.email, err, tt.ok)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := validateName("A"); err == nil {
		t.Error("expected error for one-character name")
	}
	if err := validateName("Ann"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
