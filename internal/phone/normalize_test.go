package phone_test

import (
	"testing"

	"calldesk/internal/phone"
)

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare ten digits", "5551234567", "+15551234567"},
		{"formatted us", "(555) 123-4567", "+15551234567"},
		{"dashed us", "555-123-4567", "+15551234567"},
		{"leading one", "15551234567", "+15551234567"},
		{"already e164", "+15551234567", "+15551234567"},
		{"international plus", "+442071234567", "+442071234567"},
		{"plus with punctuation", "+44 (20) 7123-4567", "+442071234567"},
		{"short fallback", "911", "+1911"},
		{"letters stripped", "555-HELP", "+1555"},
		{"empty", "", "+1"},
		{"whitespace", "   ", "+1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := phone.Normalize(tc.in); got != tc.want {
				t.Fatalf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"5551234567",
		"(555) 123-4567",
		"+442071234567",
		"15551234567",
		"911",
		"",
		"nonsense",
	}
	for _, in := range inputs {
		once := phone.Normalize(in)
		if twice := phone.Normalize(once); twice != once {
			t.Fatalf("Normalize not idempotent for %q: %q -> %q", in, once, twice)
		}
	}
}

func TestNormalizeAlwaysPlusPrefixed(t *testing.T) {
	inputs := []string{"", "abc", "555", "+", "00 49 30 123456"}
	for _, in := range inputs {
		got := phone.Normalize(in)
		if got == "" || got[0] != '+' {
			t.Fatalf("Normalize(%q) = %q, want + prefix", in, got)
		}
	}
}

func TestPlausible(t *testing.T) {
	if !phone.Plausible("+15551234567") {
		t.Fatal("expected +15551234567 to be plausible")
	}
	if phone.Plausible("+1911") {
		t.Fatal("expected +1911 to be implausible")
	}
	if phone.Plausible("+12345678901234567") {
		t.Fatal("expected over-long number to be implausible")
	}
}
