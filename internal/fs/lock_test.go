package fs_test

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/calvinalkan/promptkit/internal/fs"
)

func TestLock_ExcludesSecondHolder(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "serve.lock")

	first, err := fs.Lock(path, fs.LockTimeout)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	_, err = fs.Lock(path, 30*time.Millisecond)
	if !errors.Is(err, fs.ErrLocked) {
		t.Fatalf("second Lock err=%v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}

	again, err := fs.Lock(path, 30*time.Millisecond)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}

	if got, want := again.Path(), path; got != want {
		t.Errorf("Path()=%q, want=%q", got, want)
	}

	_ = again.Release()
}

func TestLock_MissingDirectory(t *testing.T) {
	t.Parallel()

	_, err := fs.Lock(filepath.Join(t.TempDir(), "no", "such", "dir.lock"), time.Millisecond)
	if err == nil {
		t.Fatal("Lock in missing directory should fail")
	}
}
