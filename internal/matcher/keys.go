// Package matcher joins Manifest and PCID text files on a derived key and
// produces one Match per manifest file whose key has a PCID counterpart.
package matcher

import "strings"

// DefaultKeyLength is the number of trailing characters that form a key.
const DefaultKeyLength = 6

// Keyer derives join keys from filenames.
type Keyer struct {
	Length int
}

// DefaultKeyer uses DefaultKeyLength.
var DefaultKeyer = Keyer{Length: DefaultKeyLength}

// ManifestKey derives the key of a manifest filename using DefaultKeyer.
func ManifestKey(filename string) (string, bool) {
	return DefaultKeyer.Manifest(filename)
}

// PCIDKey derives the key of a PCID filename using DefaultKeyer.
func PCIDKey(filename string) (string, bool) {
	return DefaultKeyer.PCID(filename)
}

// Manifest strips the extension, takes the segment before the first hyphen
// and returns its last Length characters. Names without a hyphen, or with a
// segment shorter than Length, have no key.
func (k Keyer) Manifest(filename string) (string, bool) {
	stem := Stem(filename)
	before, _, found := strings.Cut(stem, "-")
	if !found {
		return "", false
	}
	return lastRunes(before, k.Length)
}

// PCID strips the extension and returns the last Length characters of the stem.
func (k Keyer) PCID(filename string) (string, bool) {
	return lastRunes(Stem(filename), k.Length)
}

// Stem removes the final extension. Leading dots do not start an extension,
// so ".profile" is its own stem.
func Stem(filename string) string {
	trimmed := strings.TrimLeft(filename, ".")
	i := strings.LastIndex(trimmed, ".")
	if i < 0 {
		return filename
	}
	return filename[:len(filename)-len(trimmed)+i]
}

func lastRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", false
	}
	r := []rune(s)
	if len(r) < n {
		return "", false
	}
	return string(r[len(r)-n:]), true
}
