// Package tempfile manages transient files whose lifetime is scoped to a
// single upload attempt.
package tempfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/elastic-io/mediagate/internal/types"
	"github.com/google/uuid"
	"go.uber.org/multierr"
)

// Dir 临时文件所在目录，进程内共享，首次使用时创建
type Dir struct {
	path string
}

func NewDir(path string) *Dir {
	return &Dir{path: path}
}

func (d *Dir) Path() string {
	return d.path
}

// File 一个临时文件，调用方负责 Release
type File struct {
	path string
}

func (f *File) Path() string {
	return f.path
}

// Release 删除临时文件，文件已不存在时不算错误
func (f *File) Release() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %w", types.ErrFilesystem, f.path, err)
	}
	return nil
}

// Create 把 data 写入一个新的临时文件，文件名为 uuid 加 ext
//
// 写入失败时不会留下文件
func (d *Dir) Create(data []byte, ext string) (*File, error) {
	// MkdirAll 对已存在目录是幂等的，并发首次调用也安全
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create dir %s: %w", types.ErrFilesystem, d.path, err)
	}

	name := filepath.Join(d.path, uuid.New().String()+ext)
	fd, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %w", types.ErrFilesystem, name, err)
	}

	f := &File{path: name}
	_, err = fd.Write(data)
	err = multierr.Append(err, fd.Close())
	if err != nil {
		return nil, multierr.Append(
			fmt.Errorf("%w: write %s: %w", types.ErrFilesystem, name, err),
			f.Release(),
		)
	}
	return f, nil
}

// With 创建临时文件，调用 fn，然后无论成功失败都删除临时文件
func (d *Dir) With(data []byte, ext string, fn func(path string) error) (err error) {
	f, err := d.Create(data, ext)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, f.Release())
	}()
	return fn(f.Path())
}
