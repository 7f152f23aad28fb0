package gcsuploader

import (
	"context"
)

// BlobStore keeps payment screenshots next to their transactions.
// This interface enables mocking and testing of storage functionality.
type BlobStore interface {
	// Attach stores data for a transaction and returns its key.
	Attach(ctx context.Context, transactionID string, data []byte, contentType string) (string, error)

	// Resolve returns a URL for key, or "" when key is empty.
	Resolve(ctx context.Context, key string) (string, error)

	// Delete removes key. Deleting a missing object is not an error.
	Delete(ctx context.Context, key string) error
}

// Noop is used when no bucket is configured. Nothing is stored.
type Noop struct{}

func (Noop) Attach(ctx context.Context, transactionID string, data []byte, contentType string) (string, error) {
	return "", nil
}

func (Noop) Resolve(ctx context.Context, key string) (string, error) {
	return "", nil
}

func (Noop) Delete(ctx context.Context, key string) error {
	return nil
}
