// Package objectstore keeps raw ingestion archives and published feed
// snapshots in an S3-compatible bucket.
package objectstore

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = errors.New("object not found")

// ErrPresignUnsupported is returned by backends that cannot hand out URLs.
var ErrPresignUnsupported = errors.New("presigned urls not supported")

// Store is the object storage used by ingestion and the feed generator.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// PresignedURL returns a time-limited download URL for key.
	PresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
