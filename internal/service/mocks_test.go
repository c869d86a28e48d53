package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"iotkit-lending-backend/internal/domain"
)

// MockBorrowingRequestRepo
type MockBorrowingRequestRepo struct {
	mock.Mock
}

func (m *MockBorrowingRequestRepo) GetByID(ctx context.Context, id int32) (*domain.BorrowingRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BorrowingRequest), args.Error(1)
}
func (m *MockBorrowingRequestRepo) ListByStatus(ctx context.Context, status domain.BorrowingStatus) ([]domain.BorrowingRequest, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BorrowingRequest), args.Error(1)
}
func (m *MockBorrowingRequestRepo) UpdateStatus(ctx context.Context, req *domain.BorrowingRequest, expected domain.BorrowingStatus) error {
	args := m.Called(ctx, req, expected)
	return args.Error(0)
}

// MockKitRepo
type MockKitRepo struct {
	mock.Mock
}

func (m *MockKitRepo) GetKit(ctx context.Context, id int32) (*domain.Kit, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Kit), args.Error(1)
}
func (m *MockKitRepo) ListComponents(ctx context.Context, kitID int32) ([]domain.Component, error) {
	args := m.Called(ctx, kitID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Component), args.Error(1)
}
func (m *MockKitRepo) GetRequestComponents(ctx context.Context, requestID int32) ([]domain.RequestComponent, error) {
	args := m.Called(ctx, requestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.RequestComponent), args.Error(1)
}

// MockPenaltyRepo
type MockPenaltyRepo struct {
	mock.Mock
}

func (m *MockPenaltyRepo) Create(ctx context.Context, penalty *domain.Penalty) error {
	args := m.Called(ctx, penalty)
	return args.Error(0)
}
func (m *MockPenaltyRepo) ReplaceDetails(ctx context.Context, penaltyID int32, total int64, note string, details []domain.PenaltyDetail) ([]int32, error) {
	args := m.Called(ctx, penaltyID, total, note, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int32), args.Error(1)
}
func (m *MockPenaltyRepo) DeleteUnresolved(ctx context.Context, borrowRequestID int32) (int32, error) {
	args := m.Called(ctx, borrowRequestID)
	return args.Get(0).(int32), args.Error(1)
}
func (m *MockPenaltyRepo) CreateDetails(ctx context.Context, details []domain.PenaltyDetail) ([]int32, error) {
	args := m.Called(ctx, details)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int32), args.Error(1)
}
func (m *MockPenaltyRepo) GetByBorrowRequest(ctx context.Context, borrowRequestID int32) (*domain.Penalty, error) {
	args := m.Called(ctx, borrowRequestID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Penalty), args.Error(1)
}
func (m *MockPenaltyRepo) ListUnresolved(ctx context.Context) ([]domain.Penalty, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Penalty), args.Error(1)
}
func (m *MockPenaltyRepo) ListDetails(ctx context.Context, penaltyID int32) ([]domain.PenaltyDetail, error) {
	args := m.Called(ctx, penaltyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PenaltyDetail), args.Error(1)
}

// MockPolicyRepo
type MockPolicyRepo struct {
	mock.Mock
}

func (m *MockPolicyRepo) List(ctx context.Context) ([]domain.PenaltyPolicy, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PenaltyPolicy), args.Error(1)
}
func (m *MockPolicyRepo) GetByIDs(ctx context.Context, ids []int32) ([]domain.PenaltyPolicy, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.PenaltyPolicy), args.Error(1)
}

// MockAccountRepo
type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) GetByID(ctx context.Context, id int32) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}
func (m *MockAccountRepo) ListByRole(ctx context.Context, role domain.AccountRole) ([]domain.Account, error) {
	args := m.Called(ctx, role)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Account), args.Error(1)
}

// MockGroupRepo
type MockGroupRepo struct {
	mock.Mock
}

func (m *MockGroupRepo) FindGroupFor(ctx context.Context, accountID int32) (*domain.Group, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Group), args.Error(1)
}

// MockNotificationRepo
type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Create(ctx context.Context, note *domain.Notification) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}
func (m *MockNotificationRepo) List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int32), args.Error(2)
	}
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationRepo) MarkAsRead(ctx context.Context, id, userID int32) error {
	args := m.Called(ctx, id, userID)
	return args.Error(0)
}

// MockWalletRepo
type MockWalletRepo struct {
	mock.Mock
}

func (m *MockWalletRepo) CreateTransaction(ctx context.Context, tx *domain.WalletTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}
func (m *MockWalletRepo) GetSummary(ctx context.Context, accountID int32) (*domain.WalletSummary, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.WalletSummary), args.Error(1)
}
func (m *MockWalletRepo) ListTransactions(ctx context.Context, accountID int32, limit, offset int32) ([]domain.WalletTransaction, int32, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int32), args.Error(2)
	}
	return args.Get(0).([]domain.WalletTransaction), args.Get(1).(int32), args.Error(2)
}
func (m *MockWalletRepo) HasRefund(ctx context.Context, borrowRequestID int32) (bool, error) {
	args := m.Called(ctx, borrowRequestID)
	return args.Bool(0), args.Error(1)
}
func (m *MockWalletRepo) ListRefundCandidates(ctx context.Context, limit int32) ([]domain.BorrowingRequest, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BorrowingRequest), args.Error(1)
}

// MockFineRepo
type MockFineRepo struct {
	mock.Mock
}

func (m *MockFineRepo) Create(ctx context.Context, fine *domain.Fine) error {
	args := m.Called(ctx, fine)
	return args.Error(0)
}
func (m *MockFineRepo) ListByPayer(ctx context.Context, email string) ([]domain.Fine, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fine), args.Error(1)
}
func (m *MockFineRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]domain.Fine, error) {
	args := m.Called(ctx, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fine), args.Error(1)
}
func (m *MockFineRepo) MarkOverdue(ctx context.Context, now time.Time) ([]domain.Fine, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Fine), args.Error(1)
}

// MockAuditRepo
type MockAuditRepo struct {
	mock.Mock
}

func (m *MockAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockNotificationService
type MockNotificationService struct {
	mock.Mock
}

func (m *MockNotificationService) Send(ctx context.Context, reqs []domain.NotificationRequest) error {
	args := m.Called(ctx, reqs)
	return args.Error(0)
}
func (m *MockNotificationService) GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error) {
	args := m.Called(ctx, userID, page, pageSize)
	return args.Get(0).([]domain.Notification), args.Get(1).(int32), args.Error(2)
}
func (m *MockNotificationService) MarkAsRead(ctx context.Context, userID, notificationID int32) error {
	args := m.Called(ctx, userID, notificationID)
	return args.Error(0)
}

// MockWalletService
type MockWalletService struct {
	mock.Mock
}

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

// MockNotifier is one delivery channel.
type MockNotifier struct {
	mock.Mock
	name string
}

func (m *MockNotifier) Name() string { return m.name }
func (m *MockNotifier) Notify(ctx context.Context, account *domain.Account, note *domain.Notification) error {
	args := m.Called(ctx, account, note)
	return args.Error(0)
}

// MockEmailService
type MockEmailService struct {
	mock.Mock
}

func (m *MockEmailService) SendNotificationEmail(ctx context.Context, to, subject, body string) error {
	args := m.Called(ctx, to, subject, body)
	return args.Error(0)
}

// recordingPublisher captures realtime events.
type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

type publishedEvent struct {
	userID  int32
	event   string
	payload any
}

func (p *recordingPublisher) PublishToUser(userID int32, event string, payload any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, event: event, payload: payload})
}

func (p *recordingPublisher) PublishToAdmins(event string, payload any) {
	p.PublishToUser(0, event, payload)
}

func (p *recordingPublisher) Events() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]publishedEvent(nil), p.events...)
}
