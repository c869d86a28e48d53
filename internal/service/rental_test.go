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
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/service"
)

func pendingRequest() *domain.BorrowingRequest {
	expect := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	return &domain.BorrowingRequest{
		ID:               3,
		KitID:            2,
		RequesterID:      21,
		RequestType:      domain.RequestTypeBorrowKit,
		DepositAmount:    100000,
		Status:           domain.BorrowingStatusPending,
		ExpectReturnDate: &expect,
	}
}

func TestApprovalService_Approve(t *testing.T) {
	ctx := context.Background()
	reqRepo := new(MockBorrowingRequestRepo)
	kitRepo := new(MockKitRepo)
	auditRepo := new(MockAuditRepo)
	noteSvc := new(MockNotificationService)
	pub := &recordingPublisher{}
	queues := service.NewRequestQueues(pub)
	svc := service.NewApprovalService(reqRepo, kitRepo, auditRepo, noteSvc, queues)

	req := pendingRequest()
	queues.Upsert(*req)

	reqRepo.On("GetByID", ctx, int32(3)).Return(req, nil).Once()
	reqRepo.On("UpdateStatus", ctx, mock.MatchedBy(func(r *domain.BorrowingRequest) bool {
		return r.Status == domain.BorrowingStatusApproved && r.ApprovedDate != nil
	}), domain.BorrowingStatusPending).Return(nil).Once()
	auditRepo.On("Create", ctx, mock.MatchedBy(func(e *domain.AuditLog) bool {
		return e.Action == domain.AuditActionApprove && e.ActorID == 1 && e.EntityID == 3
	})).Return(nil).Once()
	kitRepo.On("GetKit", ctx, int32(2)).Return(&domain.Kit{ID: 2, KitName: "Weather Station Kit"}, nil).Once()
	noteSvc.On("Send", ctx, mock.MatchedBy(func(reqs []domain.NotificationRequest) bool {
		return len(reqs) == 1 && reqs[0].SubType == domain.NotificationSubTypeBorrowApproved &&
			reqs[0].UserID == 21 && reqs[0].Attributes["request_id"] == "3"
	})).Return(nil).Once()

	got, err := svc.Approve(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.BorrowingStatusApproved, got.Status)
	// the stored copy is not mutated
	assert.Equal(t, domain.BorrowingStatusPending, req.Status)

	_, queue, ok := queues.Get(3)
	require.True(t, ok)
	assert.Equal(t, service.QueueReturns, queue)
	assert.Equal(t, 1, queues.Len(service.QueueReturns))
	assert.Zero(t, queues.Len(service.QueueApproval))

	reqRepo.AssertExpectations(t)
	auditRepo.AssertExpectations(t)
	noteSvc.AssertExpectations(t)
}

func TestApprovalService_Reject(t *testing.T) {
	ctx := context.Background()

	t.Run("RequiresReason", func(t *testing.T) {
		reqRepo := new(MockBorrowingRequestRepo)
		svc := service.NewApprovalService(reqRepo, nil, nil, nil, nil)
		_, err := svc.Reject(ctx, 1, 3, "  ")
		assert.ErrorIs(t, err, service.ErrValidation)
		reqRepo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("Rejected", func(t *testing.T) {
		reqRepo := new(MockBorrowingRequestRepo)
		kitRepo := new(MockKitRepo)
		noteSvc := new(MockNotificationService)
		svc := service.NewApprovalService(reqRepo, kitRepo, nil, noteSvc, nil)

		reqRepo.On("GetByID", ctx, int32(3)).Return(pendingRequest(), nil).Once()
		reqRepo.On("UpdateStatus", ctx, mock.MatchedBy(func(r *domain.BorrowingRequest) bool {
			return r.Status == domain.BorrowingStatusRejected && r.Reason == "kit reserved for lab" && r.ApprovedDate == nil
		}), domain.BorrowingStatusPending).Return(nil).Once()
		kitRepo.On("GetKit", ctx, int32(2)).Return(nil, repository.ErrNotFound).Once()
		// notification failures never undo the decision
		noteSvc.On("Send", ctx, mock.MatchedBy(func(reqs []domain.NotificationRequest) bool {
			return reqs[0].SubType == domain.NotificationSubTypeBorrowRejected
		})).Return(errors.New("push down")).Once()

		got, err := svc.Reject(ctx, 1, 3, "kit reserved for lab")
		require.NoError(t, err)
		assert.Equal(t, domain.BorrowingStatusRejected, got.Status)
		noteSvc.AssertExpectations(t)
	})
}

func TestApprovalService_Transitions(t *testing.T) {
	ctx := context.Background()

	for _, status := range []domain.BorrowingStatus{
		domain.BorrowingStatusApproved,
		domain.BorrowingStatusRejected,
		domain.BorrowingStatusBorrowed,
		domain.BorrowingStatusReturned,
	} {
		t.Run(string(status), func(t *testing.T) {
			reqRepo := new(MockBorrowingRequestRepo)
			svc := service.NewApprovalService(reqRepo, nil, nil, nil, nil)
			req := pendingRequest()
			req.Status = status
			reqRepo.On("GetByID", ctx, int32(3)).Return(req, nil)

			_, err := svc.Approve(ctx, 1, 3)
			assert.ErrorIs(t, err, service.ErrInvalidTransition)
			_, err = svc.Reject(ctx, 1, 3, "no")
			assert.ErrorIs(t, err, service.ErrInvalidTransition)
			reqRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything)
		})
	}

	t.Run("ConcurrentDecision", func(t *testing.T) {
		reqRepo := new(MockBorrowingRequestRepo)
		svc := service.NewApprovalService(reqRepo, nil, nil, nil, nil)
		reqRepo.On("GetByID", ctx, int32(3)).Return(pendingRequest(), nil)
		reqRepo.On("UpdateStatus", ctx, mock.Anything, domain.BorrowingStatusPending).Return(repository.ErrConflict)

		_, err := svc.Approve(ctx, 1, 3)
		assert.ErrorIs(t, err, service.ErrConflict)
	})
}
