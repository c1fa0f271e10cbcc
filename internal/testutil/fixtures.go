// fixtures.go - Archive and filesystem fixtures for testing
package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"sort"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/klauspost/compress/zip"
)

// Entry is one member of a fixture archive. Names ending in "/" are directories.
type Entry struct {
	Name string
	Body string
}

// ZipArchive builds a ZIP archive in memory with entries in the given order.
func ZipArchive(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.Name)
		if err != nil {
			t.Fatalf("zip create %s: %v", e.Name, err)
		}
		if strings.HasSuffix(e.Name, "/") {
			continue
		}
		if _, err := w.Write([]byte(e.Body)); err != nil {
			t.Fatalf("zip write %s: %v", e.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// ZipFiles builds a ZIP archive from a path -> content map, written in
// sorted path order.
func ZipFiles(t testing.TB, files map[string]string) []byte {
	t.Helper()
	return ZipArchive(t, sortedEntries(files)...)
}

// MemTree creates an in-memory filesystem holding files. Paths ending in "/"
// create empty directories.
func MemTree(t testing.TB, files map[string]string) billy.Filesystem {
	t.Helper()

	fs := memfs.New()
	for _, e := range sortedEntries(files) {
		if strings.HasSuffix(e.Name, "/") {
			if err := fs.MkdirAll(strings.TrimSuffix(e.Name, "/"), 0755); err != nil {
				t.Fatalf("mkdir %s: %v", e.Name, err)
			}
			continue
		}
		if err := util.WriteFile(fs, e.Name, []byte(e.Body), 0644); err != nil {
			t.Fatalf("write %s: %v", e.Name, err)
		}
	}
	return fs
}

// RARHeader is the RAR 4.x signature, used to build corrupt RAR fixtures.
var RARHeader = []byte("Rar!\x1a\x07\x00")

// CorruptRAR returns bytes that carry a RAR signature but no valid blocks.
func CorruptRAR() []byte {
	return append(append([]byte{}, RARHeader...), bytes.Repeat([]byte{0xFF}, 64)...)
}

const (
	rarBlockMain = 0x73
	rarBlockFile = 0x74
	rarBlockEnd  = 0x7B

	rarLongBlock    = 0x8000
	rarEndFlags     = 0x4000
	rarMethodStored = 0x30
	rarHostWindows  = 2
	rarUnpackVer    = 20
	rarDOSDate      = 0x00210000 // 1980-01-01 00:00
)

// StoredRAR builds a RAR 4.x archive holding entries uncompressed. Names are
// written as given, so Windows-style "\\" separators can be exercised.
// Directory entries are not supported.
func StoredRAR(t testing.TB, entries ...Entry) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(RARHeader)
	writeRARBlock(&buf, rarBlockMain, 0, make([]byte, 6))

	for _, e := range entries {
		if strings.HasSuffix(e.Name, "/") {
			t.Fatalf("rar fixture %s: directory entries are not supported", e.Name)
		}
		body := []byte(e.Body)

		var h bytes.Buffer
		le := binary.LittleEndian
		h.Write(le.AppendUint32(nil, uint32(len(body))))
		h.Write(le.AppendUint32(nil, uint32(len(body))))
		h.WriteByte(rarHostWindows)
		h.Write(le.AppendUint32(nil, crc32.ChecksumIEEE(body)))
		h.Write(le.AppendUint32(nil, rarDOSDate))
		h.WriteByte(rarUnpackVer)
		h.WriteByte(rarMethodStored)
		h.Write(le.AppendUint16(nil, uint16(len(e.Name))))
		h.Write(le.AppendUint32(nil, 0x20))
		h.WriteString(e.Name)

		writeRARBlock(&buf, rarBlockFile, rarLongBlock, h.Bytes())
		buf.Write(body)
	}

	writeRARBlock(&buf, rarBlockEnd, rarEndFlags, nil)
	return buf.Bytes()
}

// writeRARBlock writes a block header: CRC16, type, flags, size, then fields.
// The CRC is the low half of the CRC32 over everything after it.
func writeRARBlock(buf *bytes.Buffer, typ byte, flags uint16, fields []byte) {
	le := binary.LittleEndian
	hdr := []byte{typ}
	hdr = le.AppendUint16(hdr, flags)
	hdr = le.AppendUint16(hdr, uint16(2+5+len(fields)))
	hdr = append(hdr, fields...)

	buf.Write(le.AppendUint16(nil, uint16(crc32.ChecksumIEEE(hdr))))
	buf.Write(hdr)
}

func sortedEntries(files map[string]string) []Entry {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Body: files[name]})
	}
	return entries
}
