package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestManifestKey(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantOK   bool
	}{
		{"AAABBB-PREFIX.txt", "AAABBB", true},
		{"XXAAABBB-rest.txt", "AAABBB", true},
		{"PREFIX-AAABBB.txt", "PREFIX", true},
		{"LONGNAME123456-a-b.txt", "123456", true},
		{"NOEXT123456-x", "123456", true},
		{"ÄÖÜäöüß-x.txt", "ÖÜäöüß", true},
		{"dotted.name-123456.txt", "d.name", true},
		{"SHORT-AAABBB.txt", "", false},
		{"AAABBBCCC.txt", "", false},
		{"-AAABBB.txt", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := ManifestKey(tt.filename)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPCIDKey(t *testing.T) {
	tests := []struct {
		filename string
		want     string
		wantOK   bool
	}{
		{"AAABBB.txt", "AAABBB", true},
		{"PCID-0001-AAABBB.TXT", "AAABBB", true},
		{"12345.txt", "", false},
		{"123456", "123456", true},
		{"archive.tar.txt", "ve.tar", true},
		{".hidden", "hidden", true},
		{".tiny", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got, ok := PCIDKey(tt.filename)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// Keys agree on both sides for the canonical naming convention.
func TestKeysAgree(t *testing.T) {
	m, ok := ManifestKey("AAABBB-PREFIX.txt")
	assert.True(t, ok)
	p, ok := PCIDKey("AAABBB.txt")
	assert.True(t, ok)
	assert.Equal(t, m, p)
}

func TestKeyer_CustomLength(t *testing.T) {
	k := Keyer{Length: 3}

	got, ok := k.Manifest("AB1234-x.txt")
	assert.True(t, ok)
	assert.Equal(t, "234", got)

	got, ok = k.PCID("XY.txt")
	assert.False(t, ok)
	assert.Empty(t, got)

	_, ok = Keyer{Length: 0}.PCID("anything.txt")
	assert.False(t, ok)
}

func TestStem(t *testing.T) {
	tests := map[string]string{
		"a.txt":        "a",
		"a.b.txt":      "a.b",
		"noext":        "noext",
		".profile":     ".profile",
		"..x.txt":      "..x",
		"._junk.txt":   "._junk",
		"trailingdot.": "trailingdot",
	}
	for in, want := range tests {
		assert.Equal(t, want, Stem(in), in)
	}
}
