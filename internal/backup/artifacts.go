package backup

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/calvinalkan/promptkit/internal/fs"
)

// Artifacts receives downloadable files (backups and exports).
type Artifacts interface {
	// Write stores data under name and returns where it ended up.
	Write(ctx context.Context, name string, data []byte) (string, error)
}

// DirArtifacts writes artifacts into a directory.
type DirArtifacts struct {
	FS  fs.FS
	Dir string
}

// NewDirArtifacts returns artifacts written to dir through fsys.
func NewDirArtifacts(fsys fs.FS, dir string) *DirArtifacts {
	return &DirArtifacts{FS: fsys, Dir: dir}
}

func (d *DirArtifacts) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}

	err := d.FS.MkdirAll(d.Dir, 0o750)
	if err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}

	path := filepath.Join(d.Dir, name)

	err = d.FS.WriteFileAtomic(path, data, 0o600)
	if err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}

	return path, nil
}
