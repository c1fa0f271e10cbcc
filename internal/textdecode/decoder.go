// Package textdecode turns raw file bytes into text with an explicit policy
// for malformed input.
package textdecode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// Mode selects how malformed input is handled.
type Mode string

const (
	// ModeLossy drops bytes that are not valid in the source encoding.
	ModeLossy Mode = "lossy"
	// ModeStrict fails on the first malformed sequence.
	ModeStrict Mode = "strict"
)

// ErrInvalidEncoding is returned in strict mode for malformed input.
var ErrInvalidEncoding = errors.New("invalid text encoding")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const replacementChar = string(utf8.RuneError)

// ParseMode parses "lossy" or "strict". An empty string means lossy.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLossy:
		return ModeLossy, nil
	case ModeStrict:
		return ModeStrict, nil
	}
	return "", fmt.Errorf("unknown decode mode %q", s)
}

// Decoder converts file bytes to UTF-8 strings.
type Decoder struct {
	mode    Mode
	charset string
	enc     encoding.Encoding // nil for UTF-8
}

// New creates a decoder. charset is a WHATWG label; empty means UTF-8.
func New(mode Mode, charset string) (*Decoder, error) {
	if mode != ModeLossy && mode != ModeStrict {
		return nil, fmt.Errorf("unknown decode mode %q", mode)
	}

	d := &Decoder{mode: mode, charset: "utf-8"}
	if isUTF8Label(charset) {
		return d, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = charset
	}
	d.enc = enc
	d.charset = name
	return d, nil
}

// Default returns a lossy UTF-8 decoder.
func Default() *Decoder {
	return &Decoder{mode: ModeLossy, charset: "utf-8"}
}

// Mode reports the decoder's malformed-input policy.
func (d *Decoder) Mode() Mode { return d.mode }

// Charset reports the canonical source charset name.
func (d *Decoder) Charset() string { return d.charset }

// Decode converts b to a string.
func (d *Decoder) Decode(b []byte) (string, error) {
	if d.enc != nil {
		return d.decodeCharset(b)
	}

	b = bytes.TrimPrefix(b, utf8BOM)
	if utf8.Valid(b) {
		return string(b), nil
	}
	if d.mode == ModeStrict {
		return "", fmt.Errorf("%w: malformed UTF-8 at byte %d", ErrInvalidEncoding, firstInvalid(b))
	}
	return strings.ToValidUTF8(string(b), ""), nil
}

// decodeCharset runs the x/text decoder, which substitutes U+FFFD for
// malformed input instead of failing. Replacement runes beyond those the
// source actually encoded mark malformed sequences.
func (d *Decoder) decodeCharset(b []byte) (string, error) {
	out, err := d.enc.NewDecoder().Bytes(b)
	if err != nil {
		if d.mode == ModeStrict {
			return "", fmt.Errorf("%w: %s: %v", ErrInvalidEncoding, d.charset, err)
		}
		return strings.ToValidUTF8(stripReplacement(string(out)), ""), nil
	}

	text := string(out)
	if strings.Count(text, replacementChar) <= d.encodedReplacements(b) {
		return text, nil
	}
	if d.mode == ModeStrict {
		return "", fmt.Errorf("%w: malformed %s input", ErrInvalidEncoding, d.charset)
	}
	return stripReplacement(text), nil
}

// encodedReplacements counts U+FFFD occurrences present in the source bytes.
// Charsets that cannot represent U+FFFD always report zero.
func (d *Decoder) encodedReplacements(b []byte) int {
	rep, err := d.enc.NewEncoder().Bytes([]byte(replacementChar))
	if err != nil || len(rep) == 0 {
		return 0
	}
	return bytes.Count(b, rep)
}

func stripReplacement(s string) string {
	return strings.ReplaceAll(s, replacementChar, "")
}

// DecodeReader reads r fully and decodes it.
func (d *Decoder) DecodeReader(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return d.Decode(data)
}

// ReadFile reads and decodes a file from fs.
func (d *Decoder) ReadFile(fs billy.Filesystem, path string) (string, error) {
	data, err := util.ReadFile(fs, path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	text, err := d.Decode(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", path, err)
	}
	return text, nil
}

func isUTF8Label(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf-8", "utf8", "unicode-1-1-utf-8":
		return true
	}
	return false
}

func firstInvalid(b []byte) int {
	for i := 0; i < len(b); {
		r, size := utf8.DecodeRune(b[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}
