package service

import (
	"context"
	"errors"
	"fmt"

	"iotkit-lending-backend/internal/domain"
	"iotkit-lending-backend/internal/logger"
	"iotkit-lending-backend/internal/repository"
)

type walletService struct {
	walletRepo    repository.WalletRepository
	penaltyRepo   repository.PenaltyRepository
	borrowReqRepo repository.BorrowingRequestRepository
}

func NewWalletService(walletRepo repository.WalletRepository, penaltyRepo repository.PenaltyRepository, borrowReqRepo repository.BorrowingRequestRepository) WalletService {
	return &walletService{walletRepo: walletRepo, penaltyRepo: penaltyRepo, borrowReqRepo: borrowReqRepo}
}

func (s *walletService) GetSummary(ctx context.Context, accountID int32) (*domain.WalletSummary, error) {
	return s.walletRepo.GetSummary(ctx, accountID)
}

func (s *walletService) GetTransactions(ctx context.Context, accountID int32, page, pageSize int32) ([]domain.WalletTransaction, int32, error) {
	limit, offset := pageWindow(page, pageSize)
	return s.walletRepo.ListTransactions(ctx, accountID, limit, offset)
}

// HasUnresolvedPenalty scans the unresolved penalty list for the request.
func (s *walletService) HasUnresolvedPenalty(ctx context.Context, requestID int32) (bool, error) {
	penalties, err := s.penaltyRepo.ListUnresolved(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list unresolved penalties: %w", err)
	}
	for _, p := range penalties {
		if p.BorrowRequestID == requestID {
			return true, nil
		}
	}
	return false, nil
}

func (s *walletService) RefundStatus(ctx context.Context, requestID int32) (*domain.RefundStatus, error) {
	req, err := s.borrowReqRepo.GetByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	refunded, err := s.walletRepo.HasRefund(ctx, requestID)
	if err != nil {
		return nil, err
	}
	unresolved, err := s.HasUnresolvedPenalty(ctx, requestID)
	if err != nil {
		return nil, err
	}

	return &domain.RefundStatus{
		RequestID:         req.ID,
		Status:            req.Status,
		DepositAmount:     req.DepositAmount,
		Refunded:          refunded,
		UnresolvedPenalty: unresolved,
		Eligible:          req.Status == domain.BorrowingStatusReturned && req.DepositAmount > 0 && !refunded && !unresolved,
	}, nil
}

// RefundDeposit credits the deposit back once a request is RETURNED with no unresolved penalty.
func (s *walletService) RefundDeposit(ctx context.Context, req *domain.BorrowingRequest) (*domain.WalletTransaction, error) {
	logger.EnterMethod("walletService.RefundDeposit", "requestID", req.ID, "deposit", req.DepositAmount)

	if req.Status != domain.BorrowingStatusReturned {
		err := fmt.Errorf("%w: request %d is %s", ErrInvalidTransition, req.ID, req.Status)
		logger.ExitMethodWithError("walletService.RefundDeposit", err)
		return nil, err
	}
	if req.DepositAmount <= 0 {
		logger.ExitMethod("walletService.RefundDeposit", "requestID", req.ID, "skipped", "no deposit")
		return nil, nil
	}

	refunded, err := s.walletRepo.HasRefund(ctx, req.ID)
	if err != nil {
		logger.ExitMethodWithError("walletService.RefundDeposit", err)
		return nil, err
	}
	if refunded {
		logger.ExitMethodWithError("walletService.RefundDeposit", ErrConflict, "requestID", req.ID)
		return nil, fmt.Errorf("%w: deposit of request %d already refunded", ErrConflict, req.ID)
	}
	unresolved, err := s.HasUnresolvedPenalty(ctx, req.ID)
	if err != nil {
		logger.ExitMethodWithError("walletService.RefundDeposit", err)
		return nil, err
	}
	if unresolved {
		err := fmt.Errorf("%w: request %d has an unresolved penalty", ErrValidation, req.ID)
		logger.ExitMethodWithError("walletService.RefundDeposit", err)
		return nil, err
	}

	requestID := req.ID
	tx := &domain.WalletTransaction{
		AccountID:       req.RequesterID,
		Amount:          req.DepositAmount,
		Type:            domain.TransactionTypeDepositRefund,
		BorrowRequestID: &requestID,
		Description:     fmt.Sprintf("Deposit refund for borrowing request #%d", req.ID),
	}
	if err := s.walletRepo.CreateTransaction(ctx, tx); err != nil {
		logger.ExitMethodWithError("walletService.RefundDeposit", err, "requestID", req.ID)
		return nil, err
	}

	logger.ExitMethod("walletService.RefundDeposit", "requestID", req.ID, "transactionID", tx.ID)
	return tx, nil
}

func pageWindow(page, pageSize int32) (limit, offset int32) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	return pageSize, (page - 1) * pageSize
}

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
