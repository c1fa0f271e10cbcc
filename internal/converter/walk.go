// Package converter flattens every text file of an archive into
// (prefix, content) rows.
package converter

import (
	"path"
	"sort"
	"strings"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/go-git/go-billy/v5"
)

// Filter decides which walked entries are considered.
type Filter struct {
	Extension    string
	SkipDirs     []string
	SkipPrefixes []string
}

// DefaultFilter skips macOS resource forks and keeps ".txt" files.
func DefaultFilter() Filter {
	return Filter{
		Extension:    ".txt",
		SkipDirs:     []string{"__MACOSX"},
		SkipPrefixes: []string{"._"},
	}
}

func (f Filter) skipDir(name string) bool {
	for _, d := range f.SkipDirs {
		if name == d {
			return true
		}
	}
	return false
}

func (f Filter) keepFile(name string) bool {
	for _, p := range f.SkipPrefixes {
		if strings.HasPrefix(name, p) {
			return false
		}
	}
	return strings.HasSuffix(strings.ToLower(name), strings.ToLower(f.Extension))
}

// Walk visits every directory under root depth-first with entries in
// lexical order and returns the paths of text files that pass filter.
// Unreadable directories are reported as warnings and skipped.
func Walk(fs billy.Filesystem, root string, filter Filter) ([]string, []models.Warning) {
	var files []string
	var warnings []models.Warning
	walkDir(fs, root, filter, &files, &warnings)
	return files, warnings
}

func walkDir(fs billy.Filesystem, dir string, filter Filter, files *[]string, warnings *[]models.Warning) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		*warnings = append(*warnings, models.Warning{Path: dir, Reason: err.Error()})
		return
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		p := path.Join(dir, e.Name())
		if e.IsDir() {
			if filter.skipDir(e.Name()) {
				continue
			}
			walkDir(fs, p, filter, files, warnings)
			continue
		}
		if filter.keepFile(e.Name()) {
			*files = append(*files, p)
		}
	}
}

// Prefix returns the part of filename before the first hyphen, or the whole
// filename when it has none.
func Prefix(filename string) string {
	before, _, _ := strings.Cut(filename, "-")
	return before
}
