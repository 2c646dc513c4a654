package services

import (
	"strings"
	"testing"
)

func TestSanitizeFreeTextStripsMarkupAndCaps(t *testing.T) {
	got := sanitizeFreeText("  <script>alert(1)</script>Asha  ", maxNameLength)
	if got != "Asha" {
		t.Fatalf("sanitized = %q, want Asha", got)
	}

	long := strings.Repeat("a", maxNameLength+50)
	if got := sanitizeFreeText(long, maxNameLength); len(got) != maxNameLength {
		t.Fatalf("len = %d, want %d", len(got), maxNameLength)
	}
}

func TestSanitizePhone(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"+91 98765-43210", "+91 98765-43210"},
		{"call me: 12345", "12345"},
		{"<b>987</b>", "987"},
		{"(022) 1234 5678", "(022) 1234 5678"},
		{strings.Repeat("9", 40), strings.Repeat("9", maxPhoneLength)},
	}
	for _, tc := range cases {
		if got := sanitizePhone(tc.input); got != tc.want {
			t.Fatalf("sanitizePhone(%q) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestOptionalTextNilForEmpty(t *testing.T) {
	if optionalText("   ", maxNameLength) != nil {
		t.Fatal("expected nil for whitespace-only input")
	}
	if optionalText("<i></i>", maxNameLength) != nil {
		t.Fatal("expected nil for markup-only input")
	}
	if got := optionalText("IIT Bombay", maxNameLength); got == nil || *got != "IIT Bombay" {
		t.Fatalf("got %v", got)
	}
}
