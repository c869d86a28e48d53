package storage

import (
	"context"
	"fmt"
	"time"
)

// Config holds storage configuration
type Config struct {
	Type      string // "local" or "s3"
	LocalDir  string // Directory for local storage
	BaseURL   string // Server base URL for generating local file URLs
	S3        S3Config
	URLExpiry time.Duration
}

// New builds the backend selected by cfg.Type
func New(ctx context.Context, cfg Config) (StorageInterface, error) {
	switch cfg.Type {
	case "", "local":
		return NewLocalStorage(cfg.BaseURL, cfg.LocalDir)
	case "s3":
		return NewS3Storage(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
