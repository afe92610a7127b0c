package querylog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sqlagent/sqlagent/internal/storage"
)

const DefaultPath = "query_logs.json"

// Blob holds the serialized log. Read returns nil, nil when nothing has been written yet.
type Blob interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, payload []byte) error
}

type FileBlob struct {
	path string
}

func NewFileBlob(path string) *FileBlob {
	if path == "" {
		path = DefaultPath
	}
	return &FileBlob{path: path}
}

func (f *FileBlob) Read(context.Context) ([]byte, error) {
	payload, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	return payload, nil
}

// Write replaces the file atomically through a temp file in the same directory.
func (f *FileBlob) Write(_ context.Context, payload []byte) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return fmt.Errorf("replace %s: %w", f.path, err)
	}
	return nil
}

// ObjectBlob keeps the log as a single object in a shared object store.
type ObjectBlob struct {
	store storage.ObjectStore
	key   string
}

func NewObjectBlob(store storage.ObjectStore, key string) *ObjectBlob {
	if key == "" {
		key = DefaultPath
	}
	return &ObjectBlob{store: store, key: key}
}

func (o *ObjectBlob) Read(ctx context.Context) ([]byte, error) {
	payload, err := o.store.ReadObject(ctx, o.key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, nil
	}
	return payload, err
}

func (o *ObjectBlob) Write(ctx context.Context, payload []byte) error {
	return o.store.WriteObject(ctx, o.key, payload, "application/json")
}
