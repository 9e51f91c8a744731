package domain

import (
	"context"
	"io"
	"time"
)

// Clock is the time source. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// BlobStore stores attachment bytes and generated documents by path
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	OpenRead(ctx context.Context, path string) (io.ReadCloser, error)
	DeleteIfExists(ctx context.Context, path string) error
}
