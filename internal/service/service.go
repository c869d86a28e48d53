package service

import (
	"context"
	"io"
	"time"

	"iotkit-lending-backend/internal/domain"
)

type ApprovalService interface {
	GetRequest(ctx context.Context, requestID int32) (*domain.BorrowingRequest, error)
	Approve(ctx context.Context, adminID, requestID int32) (*domain.BorrowingRequest, error)
	Reject(ctx context.Context, adminID, requestID int32, reason string) (*domain.BorrowingRequest, error)
}

// ReturnService drives the return inspection of an APPROVED request from
// opening the session to the RETURNED write and its follow-ups.
type ReturnService interface {
	OpenInspection(ctx context.Context, adminID, requestID int32) (*domain.Inspection, error)
	GetInspection(ctx context.Context, adminID, requestID int32) (*domain.Inspection, error)
	// SetComponentDamage toggles damage for one component. A nil value keeps the
	// current value, or defaults to the reference price when damage is switched on.
	SetComponentDamage(ctx context.Context, adminID, requestID int32, componentName string, damaged bool, value *int64) (*domain.Inspection, error)
	AttachEvidence(ctx context.Context, adminID, requestID int32, componentName, imageURL string) (*domain.Inspection, error)
	SelectPolicies(ctx context.Context, adminID, requestID int32, policyIDs []int32) (*domain.Inspection, error)
	CancelInspection(ctx context.Context, adminID, requestID int32) error
	SubmitInspection(ctx context.Context, adminID, requestID int32) (*domain.ReturnOutcome, error)
}

type PenaltyRecorder interface {
	Create(ctx context.Context, penalty *domain.Penalty) (int32, error)
	CreateDetails(ctx context.Context, details []domain.PenaltyDetail) ([]int32, error)
	// Record persists the penalty and its full detail batch. It must only be
	// called while the request is not yet RETURNED: an unresolved penalty left by
	// an earlier attempt is reused when identical and replaced otherwise.
	Record(ctx context.Context, penalty *domain.Penalty, details []domain.PenaltyDetail) (*domain.Penalty, []domain.PenaltyDetail, error)
	// Discard deletes an unresolved penalty left by an earlier attempt, if any.
	Discard(ctx context.Context, borrowRequestID int32) error
}

type NotificationService interface {
	// Send persists and delivers every request. Failures are joined, never partial-stopping.
	Send(ctx context.Context, reqs []domain.NotificationRequest) error
	GetNotifications(ctx context.Context, userID int32, page, pageSize int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, userID, notificationID int32) error
}

type WalletService interface {
	GetSummary(ctx context.Context, accountID int32) (*domain.WalletSummary, error)
	GetTransactions(ctx context.Context, accountID int32, page, pageSize int32) ([]domain.WalletTransaction, int32, error)
	HasUnresolvedPenalty(ctx context.Context, requestID int32) (bool, error)
	RefundStatus(ctx context.Context, requestID int32) (*domain.RefundStatus, error)
	RefundDeposit(ctx context.Context, req *domain.BorrowingRequest) (*domain.WalletTransaction, error)
}

type CatalogService interface {
	GetKit(ctx context.Context, kitID int32) (*domain.Kit, error)
	ListPenaltyPolicies(ctx context.Context) ([]domain.PenaltyPolicy, error)
	ListUnresolvedPenalties(ctx context.Context) ([]domain.Penalty, error)
	GetPenaltyDetails(ctx context.Context, penaltyID int32) ([]domain.PenaltyDetail, error)
	ListHistory(ctx context.Context, limit int32) ([]domain.RequestHistoryEntry, error)
	ListFinesFor(ctx context.Context, email string) ([]domain.Fine, error)
}

type EvidenceService interface {
	// Upload stores a damage photo for an open inspection and returns its URL.
	Upload(ctx context.Context, adminID, requestID int32, filename string, r io.Reader) (string, error)
}

type EmailService interface {
	SendNotificationEmail(ctx context.Context, to, subject, body string) error
}

// Notifier is one delivery channel of the notification dispatcher.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, account *domain.Account, note *domain.Notification) error
}

// EventPublisher pushes realtime events to connected consoles.
type EventPublisher interface {
	PublishToUser(userID int32, event string, payload any)
	PublishToAdmins(event string, payload any)
}

// InspectionLock reserves a request for a single inspector.
type InspectionLock interface {
	// Acquire succeeds when the request is free or already held by adminID.
	Acquire(ctx context.Context, requestID, adminID int32, ttl time.Duration) (bool, error)
	Release(ctx context.Context, requestID, adminID int32) error
}
