package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"iotkit-lending-backend/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
}

// S3Storage stores evidence in an S3-compatible bucket
type S3Storage struct {
	raw    *minio.Client
	bucket string
	prefix string
}

func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Storage{
		raw:    client,
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3Storage) PutObject(ctx context.Context, key, contentType string, reader io.Reader, size int64) error {
	objectKey := s.prefix + key
	logger.ExternalServiceCall("s3", "PutObject", "bucket", s.bucket, "key", objectKey)
	_, err := s.raw.PutObject(ctx, s.bucket, objectKey, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	logger.ExternalServiceResult("s3", "PutObject", err, "key", objectKey)
	if err != nil {
		return fmt.Errorf("put object %q failed: %w", objectKey, err)
	}
	return nil
}

func (s *S3Storage) GeneratePresignedDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, error) {
	u, err := s.raw.PresignedGetObject(ctx, s.bucket, s.prefix+key, expiresIn, nil)
	if err != nil {
		return "", fmt.Errorf("presign get object %q failed: %w", key, err)
	}
	return u.String(), nil
}

func (s *S3Storage) FileExists(ctx context.Context, key string) (bool, int64, error) {
	info, err := s.raw.StatObject(ctx, s.bucket, s.prefix+key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return false, 0, nil
		}
		return false, 0, err
	}
	return true, info.Size, nil
}

func (s *S3Storage) DeleteFile(ctx context.Context, key string) error {
	if err := s.raw.RemoveObject(ctx, s.bucket, s.prefix+key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove object %q failed: %w", key, err)
	}
	return nil
}

func (s *S3Storage) ReadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := s.raw.GetObject(ctx, s.bucket, s.prefix+key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %q failed: %w", key, err)
	}
	return obj, nil
}
