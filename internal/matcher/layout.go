package matcher

import (
	"errors"
	"fmt"
	"path"
	"sort"

	"github.com/go-git/go-billy/v5"
)

// ErrStructureMissing means the archive lacks the Manifest/PCID folders.
var ErrStructureMissing = errors.New("manifest or PCID folder not found")

// maxSearchDepth bounds the fallback search for the root folder.
const maxSearchDepth = 3

// Layout locates the two input folders inside the extraction root.
type Layout struct {
	Root        string `json:"root"`
	ManifestDir string `json:"manifestDir"`
	PCIDDir     string `json:"pcidDir"`
}

// Locate finds the folder holding both subfolders. The preferred root is
// tried first; otherwise directories are searched breadth-first in lexical
// order and the first one holding both subfolders wins.
func Locate(fs billy.Filesystem, preferredRoot, manifestName, pcidName string) (*Layout, error) {
	if preferredRoot != "" && hasBoth(fs, preferredRoot, manifestName, pcidName) {
		return newLayout(preferredRoot, manifestName, pcidName), nil
	}

	queue := []struct {
		dir   string
		depth int
	}{{".", 0}}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if hasBoth(fs, cur.dir, manifestName, pcidName) {
			return newLayout(cur.dir, manifestName, pcidName), nil
		}
		if cur.depth >= maxSearchDepth {
			continue
		}

		subdirs, err := listDirs(fs, cur.dir)
		if err != nil {
			continue
		}
		for _, d := range subdirs {
			queue = append(queue, struct {
				dir   string
				depth int
			}{path.Join(cur.dir, d), cur.depth + 1})
		}
	}

	return nil, fmt.Errorf("%w: expected %q containing %q and %q", ErrStructureMissing, preferredRoot, manifestName, pcidName)
}

func newLayout(root, manifestName, pcidName string) *Layout {
	return &Layout{
		Root:        root,
		ManifestDir: path.Join(root, manifestName),
		PCIDDir:     path.Join(root, pcidName),
	}
}

func hasBoth(fs billy.Filesystem, root, a, b string) bool {
	return isDir(fs, path.Join(root, a)) && isDir(fs, path.Join(root, b))
}

func isDir(fs billy.Filesystem, p string) bool {
	fi, err := fs.Stat(p)
	return err == nil && fi.IsDir()
}

func listDirs(fs billy.Filesystem, dir string) ([]string, error) {
	entries, err := fs.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e.Name())
		}
	}
	sort.Strings(dirs)
	return dirs, nil
}
