package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// FileStore keeps the registry in a JSON file. Saves write a temporary file
// and rename it into place, so readers never observe a partial document.
// Concurrent writers are not coordinated: the last rename wins.
type FileStore struct {
	Path string
}

func NewFileStore(path string) *FileStore { return &FileStore{Path: path} }

// Load reads the document. A missing file is an empty registry.
func (s *FileStore) Load(_ context.Context) (Document, error) {
	b, err := os.ReadFile(filepath.Clean(s.Path))
	if errors.Is(err, fs.ErrNotExist) {
		return NewDocument(), nil
	}
	if err != nil {
		return NewDocument(), fmt.Errorf("read registry %s: %w", s.Path, err)
	}
	return Decode(b)
}

// Save replaces the document atomically.
func (s *FileStore) Save(_ context.Context, doc Document) error {
	b, err := Encode(doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := renameio.WriteFile(s.Path, b, 0o644); err != nil {
		return fmt.Errorf("write registry %s: %w", s.Path, err)
	}
	return nil
}
