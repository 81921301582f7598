// Package storage persists audit archive objects in object storage.
package storage

import (
	"context"
	"io"
)

// ArchiveStore defines the object operations the archiver needs.
type ArchiveStore interface {
	// EnsureBucket makes sure the configured bucket exists.
	EnsureBucket(ctx context.Context) error

	// Put uploads an object under key.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error

	// Get opens a reader for an archived object.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Bucket returns the configured bucket name.
	Bucket() string
}
