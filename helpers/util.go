package helpers

import (
	"regexp"
	"strings"
)

var digitRun = regexp.MustCompile(`\d+`)

// CleanText trims s and collapses internal whitespace runs to one space.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstDigits returns the first run of ASCII digits in s, or "".
func FirstDigits(s string) string {
	return digitRun.FindString(s)
}

// OnlyDigits strips everything that is not an ASCII digit.
func OnlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContainsFold reports whether s contains any of needles, ignoring case.
func ContainsFold(s string, needles ...string) bool {
	lower := strings.ToLower(s)
	for _, n := range needles {
		if n != "" && strings.Contains(lower, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

// UniqueStrings returns the non-empty values of in, trimmed, without
// duplicates, in first-seen order. It returns nil when nothing is left.
func UniqueStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	var out []string
	for _, v := range in {
		v = CleanText(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
