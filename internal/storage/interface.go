package storage

import (
	"context"
	"io"
	"time"
)

// StorageInterface defines the interface for damage evidence storage backends
// Supports local filesystem and S3-compatible object storage
type StorageInterface interface {
	// PutObject stores the content under key
	PutObject(ctx context.Context, key, contentType string, reader io.Reader, size int64) error

	// GeneratePresignedDownloadURL returns a URL the evidence can be viewed at
	// key: storage path/key for the file
	// expiresIn: how long the URL should be valid (ignored by local storage)
	GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error)

	// FileExists checks if a file exists and returns its size
	FileExists(ctx context.Context, key string) (exists bool, size int64, err error)

	// DeleteFile removes a file from storage
	DeleteFile(ctx context.Context, key string) error

	// ReadFile opens a file for reading (used by the local file HTTP handler)
	ReadFile(ctx context.Context, key string) (io.ReadCloser, error)
}
