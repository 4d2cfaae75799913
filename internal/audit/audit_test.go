package audit

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeDetails(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text untouched", "status pending -> confirmed", "status pending -> confirmed"},
		{"newlines stripped", "line one\nline two\r\n", "line oneline two"},
		{"control characters stripped", "a\x00b\x1bc\x7fd", "abcd"},
		{"tabs stripped", "col1\tcol2", "col1col2"},
		{"unicode preserved", "Dr. Müller — ok", "Dr. Müller — ok"},
		{"empty", "", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeDetails(tc.in))
		})
	}
}

func TestSanitizeDetailsBoundsLength(t *testing.T) {
	long := strings.Repeat("x", 2000)
	got := SanitizeDetails(long)
	assert.Len(t, got, maxDetailsLen)
}
