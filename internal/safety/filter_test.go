package safety

import (
	"strings"
	"testing"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"trims whitespace", "  hi  ", "hi"},
		{"trims newlines", "\n\thello\n", "hello"},
		{"empty stays empty", "", ""},
		{"whitespace only", "   \t\n ", ""},
		{"plain text untouched", "how are you?", "how are you?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestSanitize_Truncates(t *testing.T) {
	input := strings.Repeat("a", 900)
	got := Sanitize(input)
	if len([]rune(got)) != MaxMessageChars {
		t.Errorf("Sanitize(900 chars) produced %d chars, want %d", len([]rune(got)), MaxMessageChars)
	}
}

func TestSanitize_TruncatesMultibyte(t *testing.T) {
	input := strings.Repeat("é", 850)
	got := Sanitize(input)
	if n := len([]rune(got)); n != MaxMessageChars {
		t.Errorf("Sanitize(850 multibyte chars) produced %d chars, want %d", n, MaxMessageChars)
	}
}

func TestViolatesGeneralSafety(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"dashed phone number", "call me at 555-123-4567", true},
		{"spaced phone number", "my number is 0801 234 5678", true},
		{"international prefix", "+44 20 7946 0958 anytime", true},
		{"parenthesized area code", "(555) 123-4567", true},
		{"social handle is fine for adults", "add me on snapchat", false},
		{"meet up is fine for adults", "want to meet up?", false},
		{"short number", "i am 25", false},
		{"clean message", "nice weather today", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ViolatesGeneralSafety(tt.input); got != tt.want {
				t.Errorf("ViolatesGeneralSafety(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestViolatesTeenSafety(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"phone number", "my number is 0801 234 5678", true},
		{"snapchat keyword", "add me on snapchat", true},
		{"instagram keyword", "whats your insta", true},
		{"uppercase keyword", "ADD ME ON DISCORD", true},
		{"meet up phrase", "lets meet up after school", true},
		{"spaced meet up", "we should meetup", true},
		{"location request", "where do you live", true},
		{"address request", "send me your address", true},
		{"my house phrase", "come to my house", true},
		{"keyword inside word no match", "the snapper fish", false},
		{"clean message", "what music do you like?", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ViolatesTeenSafety(tt.input); got != tt.want {
				t.Errorf("ViolatesTeenSafety(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

// The teen filter is a strict superset of the general filter.
func TestTeenFilterSupersetOfGeneral(t *testing.T) {
	inputs := []string{
		"call me 555-123-4567",
		"add me on telegram",
		"hello there",
		"+1 (800) 555 0100",
	}

	for _, in := range inputs {
		if ViolatesGeneralSafety(in) && !ViolatesTeenSafety(in) {
			t.Errorf("general flagged %q but teen did not", in)
		}
	}
}
