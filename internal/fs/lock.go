package fs

import (
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// LockTimeout is the default time [Lock] waits for a held lock.
const LockTimeout = 5 * time.Second

var (
	// ErrLocked is returned when the lock is still held after the timeout.
	ErrLocked = errors.New("lock is held by another process")

	errLockFileOpen = errors.New("failed to open lock file")
)

// FileLock is an exclusive advisory lock on a lock file.
type FileLock struct {
	path string
	file *os.File
}

// Lock takes an exclusive flock on path, retrying until timeout.
// The file is created if needed and left in place on release.
func Lock(path string, timeout time.Duration) (*FileLock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // path is from config
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errLockFileOpen, err)
	}

	deadline := time.Now().Add(timeout)

	const retryInterval = 10 * time.Millisecond

	for {
		err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &FileLock{path: path, file: file}, nil
		}

		if !errors.Is(err, unix.EWOULDBLOCK) || time.Now().After(deadline) {
			_ = file.Close()

			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%w: %s", ErrLocked, path)
			}

			return nil, fmt.Errorf("lock %s: %w", path, err)
		}

		time.Sleep(retryInterval)
	}
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Release drops the lock. It is safe to call more than once.
func (l *FileLock) Release() error {
	if l.file == nil {
		return nil
	}

	err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	closeErr := l.file.Close()
	l.file = nil

	return errors.Join(err, closeErr)
}
