package storage

import (
	"strings"
	"unicode"
)

// Slugify normalizes free-form names (prompt text, uploaded file names)
// into filesystem-safe path segments. CJK characters are kept since
// prompts are frequently written in them.
func Slugify(input string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(input) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsSpace(r), r == '_', r == '-':
			b.WriteRune('-')
		}
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

// SanitizeFilename strips characters that are unsafe in file names,
// collapsing whitespace runs into single dashes.
func SanitizeFilename(raw string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			continue
		}
		if r < 0x20 {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune('-')
			continue
		}
		b.WriteRune(r)
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	if out == "" {
		return "item"
	}
	return out
}
