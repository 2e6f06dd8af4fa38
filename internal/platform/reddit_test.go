package platform

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"Short string untouched", "hello", 10, "hello"},
		{"Exact length untouched", "hello", 5, "hello"},
		{"Long string cut", "hello world", 5, "hello..."},
		{"Empty string", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncate(tt.input, tt.max))
		})
	}
}

func TestTruncate_NeverSplitsRunes(t *testing.T) {
	// "héllo wörld" repeated puts multi-byte runes at many byte offsets.
	s := strings.Repeat("héllo wörld ", 10)

	for max := 1; max < len(s); max++ {
		out := truncate(s, max)
		assert.True(t, utf8.ValidString(out), "max=%d produced invalid UTF-8: %q", max, out)
		assert.LessOrEqual(t, len(strings.TrimSuffix(out, "...")), max)
	}
}
