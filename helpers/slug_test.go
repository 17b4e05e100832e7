package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Dermatologist", "dermatologist"},
		{"  Lahore ", "lahore"},
		{"Skin & Hair", "skin-and-hair"},
		{"child_specialist", "child-specialist"},
		{"Ear, Nose and Throat", "ear-nose-and-throat"},
		{"--gynecologist--", "gynecologist"},
		{"Rawalpindi   Cantt", "rawalpindi-cantt"},
		{"a - - b", "a-b"},
		{"Dr. (Ali)", "dr-ali"},
		{"", ""},
		{"   ", ""},
		{"&", "and"},
		{"Child\u00a0Specialist", "child-specialist"},
		{"Dera\u2003Ghazi\u3000Khan", "dera-ghazi-khan"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Slugify(tt.input))
		})
	}
}

func TestSlugifyIdempotent(t *testing.T) {
	inputs := []string{
		"Dermatologist", "Skin & Hair", "child_specialist", "--x--", "D.I. Khan",
		"Ear, Nose & Throat", "Ünïcode City", "a__b  c", "dermatologist", "skin-and-hair",
		"Child\u00a0Specialist", "\u00a0Lahore\u2009",
	}
	for _, in := range inputs {
		once := Slugify(in)
		assert.Equal(t, once, Slugify(once), "input %q", in)
	}
}

func TestSameSlug(t *testing.T) {
	assert.True(t, SameSlug("Lahore", "lahore"))
	assert.True(t, SameSlug("", "karachi"))
	assert.True(t, SameSlug("Skin & Hair", "skin-and-hair"))
	assert.True(t, SameSlug("Child\u00a0Specialist", "child-specialist"))
	assert.False(t, SameSlug("Lahore", "karachi"))
}
