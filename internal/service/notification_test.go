package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/service"
)

func TestNotificationService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversToEveryChannel", func(t *testing.T) {
		noteRepo := new(MockNotificationRepo)
		accountRepo := new(MockAccountRepo)
		email := &MockNotifier{name: "email"}
		push := &MockNotifier{name: "fcm"}
		svc := service.NewNotificationService(noteRepo, accountRepo, email, push)

		account := &domain.Account{ID: 21, Email: "student@uni.edu"}
		noteRepo.On("Create", ctx, mock.MatchedBy(func(n *domain.Notification) bool {
			return n.UserID == 21 && n.Attributes["type"] == "PENALTY_ISSUED" && n.Attributes["request_id"] == "7" &&
				!n.CreatedAt.IsZero() && n.CreatedAt.Location() == time.UTC
		})).Return(nil).Once()
		accountRepo.On("GetByID", ctx, int32(21)).Return(account, nil).Once()
		email.On("Notify", ctx, account, mock.Anything).Return(nil).Once()
		push.On("Notify", ctx, account, mock.Anything).Return(nil).Once()

		err := svc.Send(ctx, []domain.NotificationRequest{{
			UserID:     21,
			SubType:    domain.NotificationSubTypePenaltyIssued,
			Title:      "Penalty issued",
			Message:    "150.000 VND",
			Attributes: map[string]string{"request_id": "7"},
		}})
		require.NoError(t, err)
		noteRepo.AssertExpectations(t)
		email.AssertExpectations(t)
		push.AssertExpectations(t)
	})

	t.Run("FailuresAreJoinedNotStopping", func(t *testing.T) {
		noteRepo := new(MockNotificationRepo)
		accountRepo := new(MockAccountRepo)
		email := &MockNotifier{name: "email"}
		svc := service.NewNotificationService(noteRepo, accountRepo, email)

		smtpErr := errors.New("smtp timeout")
		noteRepo.On("Create", ctx, mock.Anything).Return(nil).Twice()
		accountRepo.On("GetByID", ctx, int32(21)).Return(&domain.Account{ID: 21}, nil).Once()
		accountRepo.On("GetByID", ctx, int32(30)).Return(&domain.Account{ID: 30}, nil).Once()
		email.On("Notify", ctx, mock.MatchedBy(func(a *domain.Account) bool { return a.ID == 21 }), mock.Anything).Return(smtpErr).Once()
		email.On("Notify", ctx, mock.MatchedBy(func(a *domain.Account) bool { return a.ID == 30 }), mock.Anything).Return(nil).Once()

		err := svc.Send(ctx, []domain.NotificationRequest{
			{UserID: 0, SubType: domain.NotificationSubTypeGroupPenalty},
			{UserID: 21, SubType: domain.NotificationSubTypePenaltyIssued},
			{UserID: 30, SubType: domain.NotificationSubTypeGroupPenalty},
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, smtpErr)
		assert.ErrorIs(t, err, service.ErrValidation)
		email.AssertExpectations(t)
	})
}

func TestNotificationService_Inbox(t *testing.T) {
	ctx := context.Background()
	noteRepo := new(MockNotificationRepo)
	svc := service.NewNotificationService(noteRepo, nil)

	noteRepo.On("List", ctx, int32(21), int32(100), int32(100)).Return([]domain.Notification{{ID: 1}}, int32(101), nil).Once()
	notes, total, err := svc.GetNotifications(ctx, 21, 2, 500)
	require.NoError(t, err)
	assert.Len(t, notes, 1)
	assert.Equal(t, int32(101), total)

	noteRepo.On("MarkAsRead", ctx, int32(5), int32(21)).Return(nil).Once()
	require.NoError(t, svc.MarkAsRead(ctx, 21, 5))
	noteRepo.AssertExpectations(t)
}

func TestEmailNotifier(t *testing.T) {
	ctx := context.Background()
	emailSvc := new(MockEmailService)
	n := service.NewEmailNotifier(emailSvc)

	emailSvc.On("SendNotificationEmail", ctx, "student@uni.edu", "Penalty issued", "150.000 VND").Return(nil).Once()
	err := n.Notify(ctx, &domain.Account{ID: 21, Email: "student@uni.edu"}, &domain.Notification{Title: "Penalty issued", Message: "150.000 VND"})
	require.NoError(t, err)
	assert.Equal(t, "email", n.Name())
	emailSvc.AssertExpectations(t)
}

func TestAccountTopic(t *testing.T) {
	assert.Equal(t, "account-21", service.AccountTopic(21))
}
