// Package storage defines the shared object store that can hold the query log.
package storage

import (
	"context"
	"errors"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectStore reads and replaces whole objects by key.
type ObjectStore interface {
	// ReadObject returns ErrObjectNotFound when key does not exist.
	ReadObject(ctx context.Context, key string) ([]byte, error)
	WriteObject(ctx context.Context, key string, payload []byte, contentType string) error
}
