// Package archive unpacks uploaded RAR and ZIP archives into a workspace.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/klauspost/compress/zip"
	"github.com/nwaples/rardecode/v2"
)

// Format identifies an archive container.
type Format string

const (
	FormatUnknown Format = ""
	FormatRAR     Format = "rar"
	FormatZIP     Format = "zip"
)

var (
	// ErrUnreadable means the archive is corrupt, truncated or unsafe.
	ErrUnreadable = errors.New("archive unreadable")
	// ErrUnsupportedFormat means the upload is not an accepted archive type.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
)

var (
	rarMagic = []byte("Rar!\x1a\x07")
	zipMagic = [][]byte{
		[]byte("PK\x03\x04"),
		[]byte("PK\x05\x06"), // empty archive
		[]byte("PK\x07\x08"), // spanned marker
	}
)

// Source is the spooled archive. billy.File satisfies it.
type Source interface {
	io.Reader
	io.ReaderAt
	io.Seeker
}

// Result describes what was extracted.
type Result struct {
	Format Format   `json:"format"`
	Files  []string `json:"files"`
	Dirs   int      `json:"dirs"`
}

// ParseFormats converts profile names ("rar", "zip") to formats.
func ParseFormats(names []string) ([]Format, error) {
	formats := make([]Format, 0, len(names))
	for _, n := range names {
		switch Format(strings.ToLower(strings.TrimSpace(n))) {
		case FormatRAR:
			formats = append(formats, FormatRAR)
		case FormatZIP:
			formats = append(formats, FormatZIP)
		default:
			return nil, fmt.Errorf("unknown archive format %q", n)
		}
	}
	return formats, nil
}

// Detect identifies the container from its leading bytes.
func Detect(header []byte) Format {
	if bytes.HasPrefix(header, rarMagic) {
		return FormatRAR
	}
	for _, m := range zipMagic {
		if bytes.HasPrefix(header, m) {
			return FormatZIP
		}
	}
	return FormatUnknown
}

// Extract detects the archive format and writes every entry into dst.
// Only formats listed in allowed are accepted; an empty list accepts all.
func Extract(ctx context.Context, src Source, size int64, dst billy.Filesystem, allowed []Format) (*Result, error) {
	header := make([]byte, 8)
	n, err := src.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: reading header: %v", ErrUnreadable, err)
	}

	format := Detect(header[:n])
	if format == FormatUnknown {
		return nil, fmt.Errorf("%w: unrecognised file signature", ErrUnsupportedFormat)
	}
	if !isAllowed(format, allowed) {
		return nil, fmt.Errorf("%w: %s archives are not accepted here", ErrUnsupportedFormat, format)
	}

	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	res := &Result{Format: format, Files: make([]string, 0)}
	switch format {
	case FormatRAR:
		err = extractRAR(ctx, src, dst, res)
	case FormatZIP:
		err = extractZIP(ctx, src, size, dst, res)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func extractRAR(ctx context.Context, src io.Reader, dst billy.Filesystem, res *Result) error {
	rr, err := rardecode.NewReader(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		hdr, err := rr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnreadable, err)
		}

		if err := writeEntry(dst, hdr.Name, hdr.IsDir, rr, res); err != nil {
			return err
		}
	}
}

func extractZIP(ctx context.Context, src io.ReaderAt, size int64, dst billy.Filesystem, res *Result) error {
	zr, err := zip.NewReader(src, size)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		isDir := f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/")
		if isDir {
			if err := writeEntry(dst, f.Name, true, nil, res); err != nil {
				return err
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("%w: opening %s: %v", ErrUnreadable, f.Name, err)
		}
		err = writeEntry(dst, f.Name, false, rc, res)
		rc.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(dst billy.Filesystem, name string, isDir bool, r io.Reader, res *Result) error {
	clean, err := cleanEntryName(name)
	if err != nil {
		return err
	}
	if clean == "" {
		return nil
	}

	if isDir {
		if err := dst.MkdirAll(clean, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", clean, err)
		}
		res.Dirs++
		return nil
	}

	if dir := path.Dir(clean); dir != "." {
		if err := dst.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	out, err := dst.Create(clean)
	if err != nil {
		return fmt.Errorf("creating %s: %w", clean, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("%w: extracting %s: %v", ErrUnreadable, clean, err)
	}

	res.Files = append(res.Files, clean)
	return nil
}

// cleanEntryName normalises an entry name to a slash-separated path inside
// the extraction root. Entries that would escape the root are rejected.
func cleanEntryName(name string) (string, error) {
	n := strings.ReplaceAll(name, "\\", "/")
	if strings.HasPrefix(n, "/") || hasDrivePrefix(n) {
		return "", fmt.Errorf("%w: absolute entry path %q", ErrUnreadable, name)
	}

	n = path.Clean(n)
	if n == "." {
		return "", nil
	}
	if n == ".." || strings.HasPrefix(n, "../") {
		return "", fmt.Errorf("%w: entry %q escapes extraction root", ErrUnreadable, name)
	}
	return n, nil
}

func isAllowed(f Format, allowed []Format) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == f {
			return true
		}
	}
	return false
}

// hasDrivePrefix reports a Windows drive such as "C:" or "c:/dir".
func hasDrivePrefix(n string) bool {
	if len(n) < 2 || n[1] != ':' {
		return false
	}
	c := n[0]
	if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z') {
		return false
	}
	return len(n) == 2 || n[2] == '/'
}
