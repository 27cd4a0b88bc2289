package fs

import (
	"errors"
	iofs "io/fs"
	"os"
	"sync"
)

// Op names an [FS] method for [Faulty].
type Op string

// Operations that [Faulty] can fail.
const (
	OpReadFile Op = "ReadFile"
	OpWrite    Op = "WriteFileAtomic"
	OpReadDir  Op = "ReadDir"
	OpMkdirAll Op = "MkdirAll"
)

// InjectedError marks an error as intentionally injected by [Faulty].
//
// It wraps the underlying error so errors.Is/As continue to work.
type InjectedError struct {
	Err error
}

// Error returns the underlying error's message.
func (e *InjectedError) Error() string {
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *InjectedError) Unwrap() error {
	return e.Err
}

// IsInjected reports whether err (or any wrapped error) was injected by [Faulty].
func IsInjected(err error) bool {
	var injected *InjectedError

	return errors.As(err, &injected)
}

// Faulty wraps an [FS] and fails the operations registered with [Faulty.Fail].
// Failures are returned as *fs.PathError wrapping an [InjectedError], so
// callers see the same shape as a real OS error.
type Faulty struct {
	fs FS

	mu    sync.Mutex
	fail  map[Op]error
	calls map[Op]int
}

// NewFaulty wraps inner.
func NewFaulty(inner FS) *Faulty {
	return &Faulty{fs: inner, fail: map[Op]error{}, calls: map[Op]int{}}
}

// Fail makes every later call to op return err. A nil err clears it.
func (f *Faulty) Fail(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err == nil {
		delete(f.fail, op)

		return
	}

	f.fail[op] = err
}

// Calls returns how often op was invoked, including failed calls.
func (f *Faulty) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++

	err, ok := f.fail[op]
	if !ok {
		return nil
	}

	return &iofs.PathError{Op: string(op), Path: path, Err: &InjectedError{Err: err}}
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpWrite, path); err != nil {
		return err
	}

	return f.fs.WriteFileAtomic(path, data, perm)
}

func (f *Faulty) ReadDir(path string) ([]os.DirEntry, error) {
	if err := f.check(OpReadDir, path); err != nil {
		return nil, err
	}

	return f.fs.ReadDir(path)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

var _ FS = (*Faulty)(nil)
