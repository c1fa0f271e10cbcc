package storage

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Jehaaaa/sam-extractor/internal/models"
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/google/uuid"
)

const (
	uploadDir    = "upload"
	extractedDir = "extracted"
)

// Provider hands out request-scoped workspaces.
type Provider interface {
	Open() (*Workspace, error)
}

// Workspace is the temporary filesystem owned by one pipeline run.
// Everything inside it is removed by Close.
type Workspace struct {
	ID      string
	fs      billy.Filesystem
	cleanup func() error

	mu      sync.Mutex
	archive *models.FileInfo
	closed  bool
}

// NewWorkspace wraps fs. cleanup runs once on Close and may be nil.
func NewWorkspace(fs billy.Filesystem, cleanup func() error) *Workspace {
	return &Workspace{
		ID:      uuid.New().String(),
		fs:      fs,
		cleanup: cleanup,
	}
}

// FS returns the workspace root filesystem.
func (w *Workspace) FS() billy.Filesystem {
	return w.fs
}

// SpoolArchive copies the uploaded archive into the workspace.
func (w *Workspace) SpoolArchive(name string, r io.Reader) (*models.FileInfo, error) {
	id := uuid.New().String()
	p := archivePath(id, name)

	if err := w.fs.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("creating upload directory: %w", err)
	}

	f, err := w.fs.Create(p)
	if err != nil {
		return nil, fmt.Errorf("creating file: %w", err)
	}
	defer f.Close()

	size, err := io.Copy(f, r)
	if err != nil {
		w.fs.Remove(p)
		return nil, fmt.Errorf("writing file: %w", err)
	}

	info := &models.FileInfo{
		ID:         id,
		Name:       name,
		Size:       size,
		UploadedAt: time.Now(),
		Status:     "uploaded",
	}

	w.mu.Lock()
	w.archive = info
	w.mu.Unlock()

	return info, nil
}

// OpenArchive opens the spooled archive for reading.
func (w *Workspace) OpenArchive() (billy.File, *models.FileInfo, error) {
	w.mu.Lock()
	info := w.archive
	w.mu.Unlock()

	if info == nil {
		return nil, nil, fmt.Errorf("no archive spooled in workspace %s", w.ID)
	}

	f, err := w.fs.Open(archivePath(info.ID, info.Name))
	if err != nil {
		return nil, nil, fmt.Errorf("opening archive: %w", err)
	}
	return f, info, nil
}

// ExtractionRoot returns the filesystem extracted entries are written to.
func (w *Workspace) ExtractionRoot() (billy.Filesystem, error) {
	if err := w.fs.MkdirAll(extractedDir, 0755); err != nil {
		return nil, fmt.Errorf("creating extraction directory: %w", err)
	}
	root, err := w.fs.Chroot(extractedDir)
	if err != nil {
		return nil, fmt.Errorf("chroot to extraction directory: %w", err)
	}
	return root, nil
}

// Close removes the workspace. Safe to call more than once.
func (w *Workspace) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.cleanup == nil {
		return nil
	}
	return w.cleanup()
}

func archivePath(id, name string) string {
	ext := strings.ToLower(path.Ext(filepath.Base(name)))
	return path.Join(uploadDir, id+ext)
}

// Scratch implements Provider on the local disk. Each workspace is a
// uuid-named directory under baseDir.
type Scratch struct {
	baseDir string
}

// NewScratch creates a new Scratch rooted at baseDir.
func NewScratch(baseDir string) (*Scratch, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}

	return &Scratch{baseDir: baseDir}, nil
}

// Open creates a fresh workspace directory.
func (s *Scratch) Open() (*Workspace, error) {
	id := uuid.New().String()
	dir := filepath.Join(s.baseDir, "run_"+id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}

	w := NewWorkspace(osfs.New(dir), func() error {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing workspace %s: %w", dir, err)
		}
		return nil
	})
	w.ID = id
	return w, nil
}

// BaseDir returns the directory workspaces are created in.
func (s *Scratch) BaseDir() string {
	return s.baseDir
}

// Memory implements Provider with in-memory filesystems.
type Memory struct{}

// NewMemory creates an in-memory workspace provider.
func NewMemory() *Memory {
	return &Memory{}
}

// Open creates a fresh in-memory workspace.
func (Memory) Open() (*Workspace, error) {
	return NewWorkspace(memfs.New(), nil), nil
}
