package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileBlob keeps the slot in a JSON file on local disk. Its version is the
// SHA-256 of the file contents. The version check and the rename are atomic
// within one process only.
type FileBlob struct {
	path string
	mu   sync.Mutex
}

// NewFileBlob stores the slot at dir/<slot key>
func NewFileBlob(dir, slot string) *FileBlob {
	return &FileBlob{path: filepath.Join(dir, SlotKey(slot))}
}

func (b *FileBlob) Path() string {
	return b.path
}

func (b *FileBlob) Read(_ context.Context) ([]byte, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.read()
}

// Write replaces the file through a rename so readers never see a partial payload
func (b *FileBlob) Write(_ context.Context, data []byte, version string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, current, err := b.read()
	if err != nil {
		return err
	}
	if current != version {
		return ErrConflict
	}

	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), ".favorites-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		_ = os.Remove(tmp.Name())
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), b.path); err != nil {
		return fmt.Errorf("replacing %s: %w", b.path, err)
	}
	return nil
}

func (b *FileBlob) read() ([]byte, string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading %s: %w", b.path, err)
	}
	sum := sha256.Sum256(data)
	return data, hex.EncodeToString(sum[:]), nil
}
