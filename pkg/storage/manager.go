package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	errs "fvdownloader/pkg/errors"
)

const tempSuffix = ".part"

// Manager writes downloaded images under the output root. Files only ever
// appear at their final path through a rename.
type Manager struct {
	root     string
	dirPerm  os.FileMode
	filePerm os.FileMode

	mu   sync.Mutex
	dirs map[string]bool
}

// NewManager creates a storage manager rooted at root
func NewManager(root string, dirPerm, filePerm os.FileMode) (*Manager, error) {
	if dirPerm == 0 {
		dirPerm = 0755
	}
	if filePerm == 0 {
		filePerm = 0644
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, errs.New(errs.KindFilesystem, "mkdir", root, err)
	}

	return &Manager{
		root:     root,
		dirPerm:  dirPerm,
		filePerm: filePerm,
		dirs:     map[string]bool{root: true},
	}, nil
}

// Root returns the output directory path
func (m *Manager) Root() string {
	return m.root
}

// EnsureDir creates dir and its parents. Calling it again for the same
// directory, from any goroutine, is a no-op.
func (m *Manager) EnsureDir(dir string) error {
	m.mu.Lock()
	known := m.dirs[dir]
	m.mu.Unlock()
	if known {
		return nil
	}

	if err := os.MkdirAll(dir, m.dirPerm); err != nil {
		return errs.New(errs.KindFilesystem, "mkdir", dir, err)
	}

	m.mu.Lock()
	m.dirs[dir] = true
	m.mu.Unlock()
	return nil
}

// Save streams write into a temp file beside path and renames it into
// place. If ctx is done before the rename, the temp file is removed and a
// cancelled error is returned; nothing is left at path.
func (m *Manager) Save(ctx context.Context, path string, write func(io.Writer) error) (int64, error) {
	dir := filepath.Dir(path)
	if err := m.EnsureDir(dir); err != nil {
		return 0, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*"+tempSuffix)
	if err != nil {
		return 0, errs.New(errs.KindFilesystem, "create", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	cw := &countingWriter{w: tmp}
	if err := write(cw); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return 0, errs.New(errs.KindFilesystem, "sync", path, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, errs.New(errs.KindFilesystem, "close", path, err)
	}
	if err := os.Chmod(tmpName, m.filePerm); err != nil {
		return 0, errs.New(errs.KindFilesystem, "chmod", path, err)
	}

	if err := ctx.Err(); err != nil {
		return 0, errs.New(errs.KindCancelled, "save", path, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return 0, errs.New(errs.KindFilesystem, "rename", path, err)
	}
	committed = true

	return cw.n, nil
}

// IsTempFile reports whether name looks like an in-progress write
func IsTempFile(name string) bool {
	base := filepath.Base(name)
	return strings.HasPrefix(base, ".") && strings.HasSuffix(base, tempSuffix)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
