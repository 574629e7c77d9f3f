// Package safety provides message sanitization and the contact-sharing
// filters applied before a chat message is persisted or relayed. The checks
// are pattern-based deterrents, not semantic guarantees: false negatives are
// expected and accepted.
package safety

import (
	"regexp"
	"strings"
)

// MaxMessageChars is the maximum sanitized message length in characters.
const MaxMessageChars = 800

// Compiled patterns for contact-sharing detection.
// These are compiled once at package init and reused for every call,
// making them safe and efficient for concurrent use.
var (
	// phonePattern matches phone-number-like sequences: 7 or more digits with
	// optional spaces, dots, dashes, parentheses and a leading "+".
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`)

	// socialPattern matches keywords for social platforms commonly used to
	// move a conversation off-platform.
	socialPattern = regexp.MustCompile(`\b(insta|instagram|snap|snapchat|telegram|whatsapp|tiktok|discord)\b`)

	// meetUpPattern matches meet-up and location-request phrasing.
	meetUpPattern = regexp.MustCompile(`\b(meet\s*up|come\s*to|my\s*house|send\s*location|where\s*do\s*you\s*live|address)\b`)
)

// Sanitize coerces raw input into a clean message: trims surrounding
// whitespace and truncates to MaxMessageChars characters. An empty result
// means "no message".
func Sanitize(raw string) string {
	clean := strings.TrimSpace(raw)
	runes := []rune(clean)
	if len(runes) > MaxMessageChars {
		clean = string(runes[:MaxMessageChars])
	}
	return clean
}

// ViolatesTeenSafety reports whether text trips any of the teen-protection
// checks: phone-number-like digits, social handle keywords, or meet-up and
// location-request phrases. Matching is case-insensitive.
func ViolatesTeenSafety(text string) bool {
	t := strings.ToLower(text)
	return phonePattern.MatchString(t) || socialPattern.MatchString(t) || meetUpPattern.MatchString(t)
}

// ViolatesGeneralSafety reports whether text contains a phone-number-like
// digit sequence. This is the only check applied to adult chats.
func ViolatesGeneralSafety(text string) bool {
	return phonePattern.MatchString(strings.ToLower(text))
}
