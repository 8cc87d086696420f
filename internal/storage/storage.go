// Package storage persists rendered billing documents and archived mail.
package storage

import (
	"context"
	"io"
)

// Storage defines the interface for file storage operations.
// Rendered invoices, cover letters and archived outgoing mail all go
// through this interface; the invoice row records the returned key.
type Storage interface {
	// Put stores a file under the given key and returns the key.
	Put(ctx context.Context, key string, content io.Reader) (string, error)

	// Get retrieves a file by its key.
	// Returns an io.ReadCloser that must be closed by the caller.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes a file by its key.
	// Returns nil if the file doesn't exist (idempotent).
	Delete(ctx context.Context, key string) error

	// Exists checks if a file exists at the given key.
	Exists(ctx context.Context, key string) (bool, error)
}
