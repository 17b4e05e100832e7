package helpers

import (
	"strings"
	"unicode"
)

// Slugify canonicalizes a specialty or city name into a URL-safe token.
// The result only contains [a-z0-9-]; "&" becomes "and", whitespace and
// underscores become hyphens, and hyphen runs are collapsed and trimmed.
// Slugify(Slugify(s)) == Slugify(s) for every s.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	pendingHyphen := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		case r == '-' || r == '_' || unicode.IsSpace(r):
			pendingHyphen = true
		}
		// anything else is dropped without introducing a separator
	}
	return b.String()
}

// SameSlug reports whether two free-text values normalize to the same token.
// An empty want matches anything.
func SameSlug(want, got string) bool {
	w := Slugify(want)
	if w == "" {
		return true
	}
	return w == Slugify(got)
}
