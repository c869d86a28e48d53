package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"iotkit-lending-backend/internal/imaging"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/storage"
)

type evidenceService struct {
	store     storage.StorageInterface
	processor *imaging.Processor
	returns   ReturnService
	maxBytes  int64
	urlExpiry time.Duration
}

func NewEvidenceService(store storage.StorageInterface, processor *imaging.Processor, returns ReturnService, maxBytes int64, urlExpiry time.Duration) EvidenceService {
	if processor == nil {
		processor = imaging.NewProcessor()
	}
	return &evidenceService{
		store:     store,
		processor: processor,
		returns:   returns,
		maxBytes:  maxBytes,
		urlExpiry: urlExpiry,
	}
}

func (s *evidenceService) Upload(ctx context.Context, adminID, requestID int32, filename string, r io.Reader) (string, error) {
	logger.EnterMethod("evidenceService.Upload", "adminID", adminID, "requestID", requestID, "filename", filename)

	// Only the inspector holding the session may attach photos to it.
	if _, err := s.returns.GetInspection(ctx, adminID, requestID); err != nil {
		logger.ExitMethodWithError("evidenceService.Upload", err, "requestID", requestID)
		return "", err
	}

	if s.maxBytes > 0 {
		r = io.LimitReader(r, s.maxBytes+1)
	}
	raw, err := io.ReadAll(r)
	if err != nil {
		logger.ExitMethodWithError("evidenceService.Upload", err)
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(raw)) > s.maxBytes {
		err := fmt.Errorf("%w: file exceeds %d bytes", ErrValidation, s.maxBytes)
		logger.ExitMethodWithError("evidenceService.Upload", err)
		return "", err
	}

	img, err := s.processor.Process(bytes.NewReader(raw))
	if err != nil {
		if errors.Is(err, imaging.ErrUnsupportedFormat) {
			err = fmt.Errorf("%w: %v", ErrValidation, err)
		}
		logger.ExitMethodWithError("evidenceService.Upload", err)
		return "", err
	}

	key := fmt.Sprintf("evidence/%d/%s.jpg", requestID, uuid.NewString())
	logger.ExternalServiceCall("storage", "PutObject", "key", key, "size", len(img.Data))
	err = s.store.PutObject(ctx, key, img.MIME, bytes.NewReader(img.Data), int64(len(img.Data)))
	logger.ExternalServiceResult("storage", "PutObject", err, "key", key)
	if err != nil {
		logger.ExitMethodWithError("evidenceService.Upload", err)
		return "", fmt.Errorf("failed to store evidence: %w", err)
	}

	url, err := s.store.GeneratePresignedDownloadURL(ctx, key, s.urlExpiry)
	if err != nil {
		logger.ExitMethodWithError("evidenceService.Upload", err)
		return "", fmt.Errorf("failed to build evidence url: %w", err)
	}

	logger.ExitMethod("evidenceService.Upload", "key", key, "width", img.Width, "height", img.Height)
	return url, nil
}
