package fsutil

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sys/unix"
)

// defaultPerm is used for files that did not exist before a write.
const defaultPerm os.FileMode = 0o644

// writeSyncCloser is the part of *os.File an atomic write needs.
type writeSyncCloser interface {
	io.Writer
	Sync() error
	Close() error
	Name() string
}

// OSFileSystem is the host filesystem as seen by the unsandboxed and the
// OS-policy backends. The syscall fields are swapped out in tests.
type OSFileSystem struct {
	createTemp func(dir, pattern string) (writeSyncCloser, error)
	rename     func(oldpath, newpath string) error
	chmod      func(name string, mode os.FileMode) error
	remove     func(name string) error
}

func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{
		createTemp: func(dir, pattern string) (writeSyncCloser, error) {
			return os.CreateTemp(dir, pattern)
		},
		rename: os.Rename,
		chmod:  os.Chmod,
		remove: os.Remove,
	}
}

// Stat follows symlinks.
func (r *OSFileSystem) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

func (r *OSFileSystem) Lstat(path string) (os.FileInfo, error) {
	return os.Lstat(path)
}

func (r *OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// ReadHead returns at most n leading bytes of path.
func (r *OSFileSystem) ReadHead(path string, n int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := make([]byte, n)
	m, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:m], nil
}

// Access reports whether the calling process may read path.
func (r *OSFileSystem) Access(path string) error {
	if err := unix.Access(path, unix.R_OK); err != nil {
		return &fs.PathError{Op: "access", Path: path, Err: err}
	}
	return nil
}

// ReadDirNames returns the entry names of dir, sorted.
func (r *OSFileSystem) ReadDirNames(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	sort.Strings(names)
	return names, nil
}

// EnsureDirs creates dir and its parents.
func (r *OSFileSystem) EnsureDirs(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// WriteFile creates the parent directories and writes content atomically,
// keeping the mode of an existing file.
func (r *OSFileSystem) WriteFile(path string, content []byte) error {
	if err := r.EnsureDirs(filepath.Dir(path)); err != nil {
		return err
	}
	perm := defaultPerm
	if info, err := os.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}
	return r.WriteFileAtomic(path, content, perm)
}

// WriteFileAtomic writes content to a temp file in the target directory and
// renames it over path. A failure before the rename leaves path untouched.
func (r *OSFileSystem) WriteFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := r.createTemp(dir, ".tmp-*")
	if err != nil {
		return &AtomicWriteError{Stage: "create", Path: dir, Cause: err}
	}

	tmpPath := tmpFile.Name()
	needsCleanup := true

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
		}
		if needsCleanup {
			_ = r.remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(content); err != nil {
		return &AtomicWriteError{Stage: "write", Path: tmpPath, Cause: err}
	}

	if err := tmpFile.Sync(); err != nil {
		return &AtomicWriteError{Stage: "sync", Path: tmpPath, Cause: err}
	}

	if err := tmpFile.Close(); err != nil {
		tmpFile = nil
		return &AtomicWriteError{Stage: "close", Path: tmpPath, Cause: err}
	}
	tmpFile = nil

	if err := r.rename(tmpPath, path); err != nil {
		return &AtomicWriteError{Stage: "rename", Path: path, Cause: err}
	}
	needsCleanup = false

	if err := r.chmod(path, perm); err != nil {
		return &AtomicWriteError{Stage: "chmod", Path: path, Cause: err}
	}

	return nil
}
