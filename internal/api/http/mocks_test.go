package http_test

import (
	"context"

	"github.com/stretchr/testify/mock"

	"iotkit-lending-backend/internal/domain"
)

type MockApprovalService struct{ mock.Mock }

func (m *MockApprovalService) GetRequest(ctx context.Context, requestID int32) (*domain.BorrowingRequest, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowingRequest), args.Error(1)
}

func (m *MockApprovalService) Approve(ctx context.Context, adminID, requestID int32) (*domain.BorrowingRequest, error) {
	args := m.Called(ctx, adminID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowingRequest), args.Error(1)
}

func (m *MockApprovalService) Reject(ctx context.Context, adminID, requestID int32, reason string) (*domain.BorrowingRequest, error) {
	args := m.Called(ctx, adminID, requestID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowingRequest), args.Error(1)
}

type MockReturnService struct{ mock.Mock }

func (m *MockReturnService) inspection(args mock.Arguments) (*domain.Inspection, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Inspection), args.Error(1)
}

func (m *MockReturnService) OpenInspection(ctx context.Context, adminID, requestID int32) (*domain.Inspection, error) {
	return m.inspection(m.Called(ctx, adminID, requestID))
}

func (m *MockReturnService) GetInspection(ctx context.Context, adminID, requestID int32) (*domain.Inspection, error) {
	return m.inspection(m.Called(ctx, adminID, requestID))
}

func (m *MockReturnService) SetComponentDamage(ctx context.Context, adminID, requestID int32, componentName string, damaged bool, value *int64) (*domain.Inspection, error) {
	return m.inspection(m.Called(ctx, adminID, requestID, componentName, damaged, value))
}

func (m *MockReturnService) AttachEvidence(ctx context.Context, adminID, requestID int32, componentName, imageURL string) (*domain.Inspection, error) {
	return m.inspection(m.Called(ctx, adminID, requestID, componentName, imageURL))
}

func (m *MockReturnService) SelectPolicies(ctx context.Context, adminID, requestID int32, policyIDs []int32) (*domain.Inspection, error) {
	return m.inspection(m.Called(ctx, adminID, requestID, policyIDs))
}

func (m *MockReturnService) CancelInspection(ctx context.Context, adminID, requestID int32) error {
	return m.Called(ctx, adminID, requestID).Error(0)
}

func (m *MockReturnService) SubmitInspection(ctx context.Context, adminID, requestID int32) (*domain.ReturnOutcome, error) {
	args := m.Called(ctx, adminID, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ReturnOutcome), args.Error(1)
}

type MockWalletService struct{ mock.Mock }

func (m *MockWalletService) GetSummary(ctx context.Context, accountID int32) (*domain.WalletSummary, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletSummary), args.Error(1)
}

func (m *MockWalletService) GetTransactions(ctx context.Context, accountID int32, page, pageSize int32) ([]domain.WalletTransaction, int32, error) {
	args := m.Called(ctx, accountID, page, pageSize)
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int32), args.Error(2)
}

func (m *MockWalletService) HasUnresolvedPenalty(ctx context.Context, requestID int32) (bool, error) {
	args := m.Called(ctx, requestID)
	return args.Bool(0), args.Error(1)
}

func (m *MockWalletService) RefundStatus(ctx context.Context, requestID int32) (*domain.RefundStatus, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RefundStatus), args.Error(1)
}

func (m *MockWalletService) RefundDeposit(ctx context.Context, req *domain.BorrowingRequest) (*domain.WalletTransaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletTransaction), args.Error(1)
}
