// Package fs is the file access promptkit does outside its KV store:
// reading import and config files, and writing exports and backup
// artifacts. [Real] is the production implementation; [Faulty] wraps any
// [FS] and fails chosen operations in tests. [Lock] guards a data dir
// against a second server.
package fs

import "os"

// FS is the file system as promptkit sees it.
type FS interface {
	// ReadFile behaves like [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data so that readers see either
	// the old or the new content, never a mix, and sets perm on the result.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// ReadDir behaves like [os.ReadDir].
	ReadDir(path string) ([]os.DirEntry, error)

	// MkdirAll behaves like [os.MkdirAll].
	MkdirAll(path string, perm os.FileMode) error
}
