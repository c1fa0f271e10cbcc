package matcher

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/go-git/go-billy/v5"
)

// DuplicatePolicy decides what happens when two PCID files share a key.
type DuplicatePolicy string

const (
	// LastWriteWins keeps the filename scanned last and reports a warning.
	LastWriteWins DuplicatePolicy = "last-write-wins"
	// RejectDuplicates fails the run.
	RejectDuplicates DuplicatePolicy = "reject"
)

// ErrDuplicateKey is returned under RejectDuplicates.
var ErrDuplicateKey = errors.New("duplicate PCID key")

// ParseDuplicatePolicy parses a policy name. Empty means LastWriteWins.
func ParseDuplicatePolicy(s string) (DuplicatePolicy, error) {
	switch DuplicatePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", LastWriteWins:
		return LastWriteWins, nil
	case RejectDuplicates:
		return RejectDuplicates, nil
	}
	return "", fmt.Errorf("unknown duplicate key policy %q", s)
}

// ScanOptions controls how a folder of text files is keyed.
type ScanOptions struct {
	Keyer     Keyer
	Extension string
	Policy    DuplicatePolicy
}

// DefaultScanOptions matches the original tooling: 6-character keys,
// ".txt" files, last write wins.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{Keyer: DefaultKeyer, Extension: ".txt", Policy: LastWriteWins}
}

// PCIDMap is an insertion-ordered key -> filename mapping. Replacing a key
// keeps its original position.
type PCIDMap struct {
	keys  []string
	files map[string]string
}

// NewPCIDMap creates an empty map.
func NewPCIDMap() *PCIDMap {
	return &PCIDMap{files: make(map[string]string)}
}

// Put stores filename under key and returns the filename it replaced, if any.
func (m *PCIDMap) Put(key, filename string) (string, bool) {
	prev, ok := m.files[key]
	if !ok {
		m.keys = append(m.keys, key)
	}
	m.files[key] = filename
	return prev, ok
}

// Get returns the filename stored under key.
func (m *PCIDMap) Get(key string) (string, bool) {
	f, ok := m.files[key]
	return f, ok
}

// Record returns the PCID record for key. Its content is the filename stem.
func (m *PCIDMap) Record(key string) (models.PCIDRecord, bool) {
	f, ok := m.files[key]
	if !ok {
		return models.PCIDRecord{}, false
	}
	return models.PCIDRecord{Key: key, Filename: f, Content: Stem(f)}, true
}

// Keys returns keys in insertion order.
func (m *PCIDMap) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *PCIDMap) Len() int { return len(m.keys) }

// BuildPCIDMap keys every text file directly inside dir.
func BuildPCIDMap(fs billy.Filesystem, dir string, opts ScanOptions) (*PCIDMap, []models.Warning, error) {
	names, err := ListTextFiles(fs, dir, opts.Extension)
	if err != nil {
		return nil, nil, err
	}

	m := NewPCIDMap()
	var warnings []models.Warning
	for _, name := range names {
		key, ok := opts.Keyer.PCID(name)
		if !ok {
			warnings = append(warnings, models.Warning{
				Path:   path.Join(dir, name),
				Reason: fmt.Sprintf("no derivable key: stem shorter than %d characters", opts.Keyer.Length),
			})
			continue
		}

		if opts.Policy == RejectDuplicates {
			if prev, exists := m.Get(key); exists {
				return nil, warnings, fmt.Errorf("%w %q: %s and %s", ErrDuplicateKey, key, prev, name)
			}
		}

		if prev, replaced := m.Put(key, name); replaced {
			warnings = append(warnings, models.Warning{
				Path:   path.Join(dir, name),
				Reason: fmt.Sprintf("duplicate key %q replaces %s", key, prev),
			})
		}
	}
	return m, warnings, nil
}

// ListTextFiles returns the names of regular files directly inside dir whose
// name ends with ext (case-insensitive), in lexical order.
func ListTextFiles(fs billy.Filesystem, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}

	ext = strings.ToLower(ext)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
