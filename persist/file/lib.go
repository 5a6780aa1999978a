package file

import (
	"context"
	"os"
	"path/filepath"
)

// Persist implements the cnotes.Persist interface for storing and
// loading blobs as files under a base path.
type Persist struct {
	basepath string
}

// Load loads the bytes persisted in the named file.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.basepath, name))
}

// Store persists the given bytes in a file of the given name.  Names
// may contain slashes; intermediate directories are created as needed.
// Last write wins, which is what a re-flushed trace entry needs.
func (p Persist) Store(ctx context.Context, name string, bytes []byte) error {
	path := filepath.Join(p.basepath, name)
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return err
	}
	return os.WriteFile(path, bytes, 0o644)
}

// NewPersistForPath returns a Persist that loads and stores blobs as
// files in the directory at the given path.
//
//	p := NewPersistForPath("/var/db/notes")
//	blob, err := p.Load(ctx, "98ea6e4f216f2fb4b69fff9b3a44842c38686ca6")
func NewPersistForPath(path string) Persist {
	return Persist{path}
}
