package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
	"iotkit-lending-backend/internal/utils"
)

type approvalService struct {
	borrowReqRepo repository.BorrowingRequestRepository
	kitRepo       repository.KitRepository
	auditRepo     repository.AuditLogRepository
	noteSvc       NotificationService
	queues        *RequestQueues
	now           func() time.Time
}

func NewApprovalService(
	borrowReqRepo repository.BorrowingRequestRepository,
	kitRepo repository.KitRepository,
	auditRepo repository.AuditLogRepository,
	noteSvc NotificationService,
	queues *RequestQueues,
) ApprovalService {
	return &approvalService{
		borrowReqRepo: borrowReqRepo,
		kitRepo:       kitRepo,
		auditRepo:     auditRepo,
		noteSvc:       noteSvc,
		queues:        queues,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

func (s *approvalService) GetRequest(ctx context.Context, requestID int32) (*domain.BorrowingRequest, error) {
	return s.borrowReqRepo.GetByID(ctx, requestID)
}

func (s *approvalService) Approve(ctx context.Context, adminID, requestID int32) (*domain.BorrowingRequest, error) {
	logger.EnterMethod("approvalService.Approve", "adminID", adminID, "requestID", requestID)

	now := s.now()
	req, err := s.transition(ctx, requestID, domain.BorrowingStatusApproved, func(r *domain.BorrowingRequest) {
		r.ApprovedDate = &now
	})
	if err != nil {
		logger.ExitMethodWithError("approvalService.Approve", err, "requestID", requestID)
		return nil, err
	}

	s.audit(ctx, adminID, domain.AuditActionApprove, req.ID, "")

	kitName := s.kitName(ctx, req.KitID)
	msg := fmt.Sprintf("Your request to borrow %s was approved.", kitName)
	if req.ExpectReturnDate != nil {
		msg += fmt.Sprintf(" Please return it by %s.", req.ExpectReturnDate.Format("2006-01-02"))
	}
	if req.DepositAmount > 0 {
		msg += fmt.Sprintf(" A deposit of %s is held until the kit is returned.", utils.FormatVND(req.DepositAmount))
	}
	s.notify(ctx, req, domain.NotificationSubTypeBorrowApproved, "Borrowing request approved", msg)

	logger.ExitMethod("approvalService.Approve", "requestID", req.ID)
	return req, nil
}

func (s *approvalService) Reject(ctx context.Context, adminID, requestID int32, reason string) (*domain.BorrowingRequest, error) {
	logger.EnterMethod("approvalService.Reject", "adminID", adminID, "requestID", requestID)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		err := fmt.Errorf("%w: a rejection reason is required", ErrValidation)
		logger.ExitMethodWithError("approvalService.Reject", err)
		return nil, err
	}

	req, err := s.transition(ctx, requestID, domain.BorrowingStatusRejected, func(r *domain.BorrowingRequest) {
		r.Reason = reason
	})
	if err != nil {
		logger.ExitMethodWithError("approvalService.Reject", err, "requestID", requestID)
		return nil, err
	}

	s.audit(ctx, adminID, domain.AuditActionReject, req.ID, reason)

	kitName := s.kitName(ctx, req.KitID)
	s.notify(ctx, req, domain.NotificationSubTypeBorrowRejected, "Borrowing request rejected",
		fmt.Sprintf("Your request to borrow %s was rejected: %s", kitName, reason))

	logger.ExitMethod("approvalService.Reject", "requestID", req.ID)
	return req, nil
}

// transition moves a PENDING request to next and refreshes the queues.
func (s *approvalService) transition(ctx context.Context, requestID int32, next domain.BorrowingStatus, apply func(*domain.BorrowingRequest)) (*domain.BorrowingRequest, error) {
	req, err := s.borrowReqRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, fmt.Errorf("borrowing request %d: %w", requestID, err)
	}
	if !req.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: request %d is %s, cannot move to %s", ErrInvalidTransition, requestID, req.Status, next)
	}

	expected := req.Status
	updated := *req
	updated.Status = next
	apply(&updated)

	if err := s.borrowReqRepo.UpdateStatus(ctx, &updated, expected); err != nil {
		return nil, err
	}
	if s.queues != nil {
		s.queues.Upsert(updated)
	}
	return &updated, nil
}

func (s *approvalService) audit(ctx context.Context, adminID int32, action domain.AuditAction, requestID int32, detail string) {
	if s.auditRepo == nil {
		return
	}
	entry := &domain.AuditLog{ActorID: adminID, Action: action, EntityID: requestID, Detail: detail}
	if err := s.auditRepo.Create(ctx, entry); err != nil {
		logger.Warn("Failed to write audit log", "action", action, "requestID", requestID, "error", err)
	}
}

func (s *approvalService) kitName(ctx context.Context, kitID int32) string {
	kit, err := s.kitRepo.GetKit(ctx, kitID)
	if err != nil || kit == nil {
		return fmt.Sprintf("kit #%d", kitID)
	}
	return kit.KitName
}

func (s *approvalService) notify(ctx context.Context, req *domain.BorrowingRequest, subType domain.NotificationSubType, title, msg string) {
	if s.noteSvc == nil {
		return
	}
	err := s.noteSvc.Send(ctx, []domain.NotificationRequest{{
		UserID:     req.RequesterID,
		SubType:    subType,
		Title:      title,
		Message:    msg,
		Attributes: map[string]string{"request_id": fmt.Sprintf("%d", req.ID)},
	}})
	if err != nil {
		logger.Warn("Failed to notify requester", "requestID", req.ID, "subType", subType, "error", err)
	}
}
