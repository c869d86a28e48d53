package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"iotkit-lending-backend/internal/logger"
)

// LocalStorage keeps evidence images on the local filesystem and serves them
// through the /files route of the admin API
type LocalStorage struct {
	baseURL   string // Server URL (e.g., "http://localhost:8080")
	uploadDir string // Local directory for uploads (e.g., "./uploads")
}

// NewLocalStorage creates the upload directory if needed
func NewLocalStorage(baseURL, uploadDir string) (*LocalStorage, error) {
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStorage{
		baseURL:   strings.TrimRight(baseURL, "/"),
		uploadDir: uploadDir,
	}, nil
}

// resolve maps a key to a path inside uploadDir, rejecting traversal
func (l *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.uploadDir, clean), nil
}

// PutObject saves uploaded content to the local filesystem
func (l *LocalStorage) PutObject(ctx context.Context, key, contentType string, reader io.Reader, size int64) error {
	fullPath, err := l.resolve(key)
	if err != nil {
		return err
	}

	// Create parent directories
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	written, err := io.Copy(file, reader)
	if err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	logger.Debug("Evidence stored locally", "key", key, "bytes", written)
	return nil
}

// GeneratePresignedDownloadURL returns the public file route for the key
func (l *LocalStorage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	if _, err := l.resolve(key); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/files/%s", l.baseURL, strings.TrimLeft(key, "/")), nil
}

// FileExists checks if file exists in local filesystem
func (l *LocalStorage) FileExists(ctx context.Context, key string) (bool, int64, error) {
	fullPath, err := l.resolve(key)
	if err != nil {
		return false, 0, err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, info.Size(), nil
}

// DeleteFile deletes file from local filesystem
func (l *LocalStorage) DeleteFile(ctx context.Context, key string) error {
	fullPath, err := l.resolve(key)
	if err != nil {
		return err
	}
	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

// ReadFile reads file from local filesystem
func (l *LocalStorage) ReadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	fullPath, err := l.resolve(key)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}
