// Package textutil provides filesystem-safe naming helpers for paths derived
// from untrusted URLs and site keys.
package textutil

import "strings"

var unsafeNameReplacer = strings.NewReplacer(
	"/", "-",
	"\\", "-",
	":", "-",
	"*", "-",
	"?", "",
	"\"", "",
	"<", "",
	">", "",
	"|", "",
	"\x00", "",
)

// SanitizeFileName makes a URL-derived name safe to use as a filename.
// Separators and other characters filesystems reject become dashes or are
// dropped; surrounding whitespace is trimmed. Returns "" when nothing
// usable remains.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(unsafeNameReplacer.Replace(strings.TrimSpace(name)))
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// SanitizeToken lowercases a value into a filesystem-safe directory token.
// Anything outside [a-z0-9-_] becomes an underscore. Returns "unknown" when
// the input reduces to nothing, so callers always get a usable path segment.
func SanitizeToken(value string) string {
	value = strings.TrimSpace(value)
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		default:
			b.WriteByte('_')
		}
	}
	token := strings.Trim(b.String(), "_-")
	if token == "" {
		return "unknown"
	}
	return token
}
