package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type notificationService struct {
	noteRepo    repository.NotificationRepository
	accountRepo repository.AccountRepository
	channels    []Notifier
	now         func() time.Time
}

// NewNotificationService builds the dispatcher. Every request is persisted first
// and then handed to each channel in order.
func NewNotificationService(noteRepo repository.NotificationRepository, accountRepo repository.AccountRepository, channels ...Notifier) NotificationService {
	return &notificationService{
		noteRepo:    noteRepo,
		accountRepo: accountRepo,
		channels:    channels,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *notificationService) Send(ctx context.Context, reqs []domain.NotificationRequest) error {
	logger.EnterMethod("notificationService.Send", "count", len(reqs))

	var errs []error
	for _, r := range reqs {
		if r.UserID <= 0 {
			errs = append(errs, fmt.Errorf("%w: notification %q has no recipient", ErrValidation, r.SubType))
			continue
		}

		attrs := map[string]string{"type": string(r.SubType)}
		maps.Copy(attrs, r.Attributes)
		note := &domain.Notification{
			UserID:     r.UserID,
			SubType:    r.SubType,
			Title:      r.Title,
			Message:    r.Message,
			Attributes: attrs,
			CreatedAt:  s.now(),
		}
		if err := s.noteRepo.Create(ctx, note); err != nil {
			errs = append(errs, fmt.Errorf("persist notification for user %d: %w", r.UserID, err))
		}

		if len(s.channels) == 0 {
			continue
		}
		account, err := s.accountRepo.GetByID(ctx, r.UserID)
		if err != nil {
			errs = append(errs, fmt.Errorf("load recipient %d: %w", r.UserID, err))
			continue
		}
		for _, ch := range s.channels {
			logger.ExternalServiceCall(ch.Name(), "Notify", "userID", r.UserID, "subType", r.SubType)
			err := ch.Notify(ctx, account, note)
			logger.ExternalServiceResult(ch.Name(), "Notify", err, "userID", r.UserID)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s channel for user %d: %w", ch.Name(), r.UserID, err))
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		logger.ExitMethodWithError("notificationService.Send", err, "failures", len(errs))
	} else {
		logger.ExitMethod("notificationService.Send", "count", len(reqs))
	}
	return err
}

func (s *notificationService) GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	limit, offset := pageWindow(page, pageSize)
	return s.noteRepo.List(ctx, userID, limit, offset)
}

func (s *notificationService) MarkAsRead(ctx context.Context, userID, notificationID int32) error {
	return s.noteRepo.MarkAsRead(ctx, notificationID, userID)
}
