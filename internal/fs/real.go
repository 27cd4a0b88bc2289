package fs

import (
	"bytes"
	"os"

	"github.com/natefinch/atomic"
)

// Real is the operating system's file system.
type Real struct{}

var _ FS = (*Real)(nil)

// NewReal returns a [Real].
func NewReal() *Real {
	return &Real{}
}

func (*Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path) //nolint:gosec // paths come from the user or config
}

// WriteFileAtomic writes through a temp file in the same directory and
// renames it over path.
func (*Real) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return err
	}

	return os.Chmod(path, perm)
}

func (*Real) ReadDir(path string) ([]os.DirEntry, error) {
	return os.ReadDir(path)
}

func (*Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}
