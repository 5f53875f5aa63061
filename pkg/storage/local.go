package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// Local implements Store on an afero filesystem, usually the OS one.
// With an empty root, paths are used as given, so absolute paths and paths
// relative to the working directory both work.
type Local struct {
	fs   afero.Fs
	root string
}

// NewLocal creates a Local store on fsys rooted at dir. A non-empty dir is
// created (with parents) if it does not already exist.
func NewLocal(fsys afero.Fs, dir string) (*Local, error) {
	if dir != "" {
		if err := fsys.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &Local{fs: fsys, root: dir}, nil
}

// NewOS creates a Local store on the operating system filesystem.
func NewOS(dir string) (*Local, error) {
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		dir = abs
	}
	return NewLocal(afero.NewOsFs(), dir)
}

func (l *Local) resolve(path string) string {
	if l.root == "" {
		return filepath.FromSlash(path)
	}
	return filepath.Join(l.root, filepath.FromSlash(path))
}

// Open opens the named file for reading.
func (l *Local) Open(_ context.Context, path string) (Object, error) {
	f, err := l.fs.Open(l.resolve(path))
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, &fs.PathError{Op: "open", Path: path, Err: errors.New("is a directory")}
	}
	return &localObject{File: f, size: info.Size()}, nil
}

// Create opens the named file for writing, creating parent directories as
// needed.
func (l *Local) Create(_ context.Context, path string) (io.WriteCloser, error) {
	full := l.resolve(path)
	if dir := filepath.Dir(full); dir != "." {
		if err := l.fs.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return l.fs.Create(full)
}

// Remove deletes the named file.
func (l *Local) Remove(_ context.Context, path string) error {
	err := l.fs.Remove(l.resolve(path))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Exists reports whether the named file exists.
func (l *Local) Exists(_ context.Context, path string) (bool, error) {
	return afero.Exists(l.fs, l.resolve(path))
}

type localObject struct {
	afero.File
	size int64
}

func (o *localObject) Size() int64 { return o.size }

var _ Store = (*Local)(nil)
