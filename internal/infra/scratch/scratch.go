// Package scratch stages downloaded payloads on local disk so path-based
// parsers can read them. Every file is uniquely named and removed by its
// owner through Release.
package scratch

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"stlquote/internal/infra/logging"
)

const suffix = ".stl"

// Dir is a scratch directory shared by concurrent requests.
type Dir struct {
	path string
}

// New ensures dir exists. An empty dir means a stlquote directory under os.TempDir.
func New(dir string) (*Dir, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "stlquote")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch dir %s: %w", dir, err)
	}
	return &Dir{path: dir}, nil
}

// Path returns the directory scratch files are created in.
func (d *Dir) Path() string { return d.path }

// File is one scratch file, open for writing.
type File struct {
	*os.File
	once sync.Once
	err  error
}

// Acquire creates a new uniquely named file. The caller must defer Release.
func (d *Dir) Acquire() (*File, error) {
	name := filepath.Join(d.path, uuid.NewString()+suffix)
	f, err := os.OpenFile(name, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create scratch file: %w", err)
	}
	return &File{File: f}, nil
}

// Release closes and removes the file. It is safe to call more than once.
func (f *File) Release() error {
	f.once.Do(func() {
		_ = f.File.Close()
		if err := os.Remove(f.Name()); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logging.Warn("Failed to remove scratch file", "path", f.Name(), "error", err)
			f.err = err
		}
	})
	return f.err
}

// Count returns the number of scratch files currently on disk.
func (d *Dir) Count() (int, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), suffix) {
			n++
		}
	}
	return n, nil
}
