package repository

import (
	"context"
	"errors"
	"time"

	"iotkit-lending-backend/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write matched no row because
	// the record moved on since it was read.
	ErrConflict = errors.New("record was modified concurrently")
)

type BorrowingRequestRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.BorrowingRequest, error)
	ListByStatus(ctx context.Context, status domain.BorrowingStatus) ([]domain.BorrowingRequest, error)
	// UpdateStatus writes req.Status, ApprovedDate, ActualReturnDate, IsLate and Reason
	// only if the stored status still equals expected. Returns ErrConflict otherwise.
	UpdateStatus(ctx context.Context, req *domain.BorrowingRequest, expected domain.BorrowingStatus) error
}

type KitRepository interface {
	GetKit(ctx context.Context, id int32) (*domain.Kit, error)
	ListComponents(ctx context.Context, kitID int32) ([]domain.Component, error)
	GetRequestComponents(ctx context.Context, requestID int32) ([]domain.RequestComponent, error)
}

type PenaltyRepository interface {
	Create(ctx context.Context, penalty *domain.Penalty) error
	// CreateDetails inserts the batch in one transaction and returns the new ids in input order.
	CreateDetails(ctx context.Context, details []domain.PenaltyDetail) ([]int32, error)
	// ReplaceDetails updates an unresolved penalty's total and note and swaps its
	// details for the batch, all in one transaction. A resolved or missing
	// penalty yields ErrConflict.
	ReplaceDetails(ctx context.Context, penaltyID int32, total int64, note string, details []domain.PenaltyDetail) ([]int32, error)
	// DeleteUnresolved removes the request's unresolved penalty with its details
	// and returns its id, or 0 when there was none.
	DeleteUnresolved(ctx context.Context, borrowRequestID int32) (int32, error)
	GetByBorrowRequest(ctx context.Context, borrowRequestID int32) (*domain.Penalty, error)
	ListUnresolved(ctx context.Context) ([]domain.Penalty, error)
	ListDetails(ctx context.Context, penaltyID int32) ([]domain.PenaltyDetail, error)
}

type PenaltyPolicyRepository interface {
	List(ctx context.Context) ([]domain.PenaltyPolicy, error)
	GetByIDs(ctx context.Context, ids []int32) ([]domain.PenaltyPolicy, error)
}

type AccountRepository interface {
	GetByID(ctx context.Context, id int32) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ListByRole(ctx context.Context, role domain.AccountRole) ([]domain.Account, error)
}

type GroupRepository interface {
	// FindGroupFor returns the group the account belongs to, or nil when it has none.
	FindGroupFor(ctx context.Context, accountID int32) (*domain.Group, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, note *domain.Notification) error
	List(ctx context.Context, userID int32, limit, offset int32) ([]domain.Notification, int32, error)
	MarkAsRead(ctx context.Context, id, userID int32) error
}

type WalletRepository interface {
	// CreateTransaction records the movement and applies it to the account balance atomically.
	CreateTransaction(ctx context.Context, tx *domain.WalletTransaction) error
	GetSummary(ctx context.Context, accountID int32) (*domain.WalletSummary, error)
	ListTransactions(ctx context.Context, accountID int32, limit, offset int32) ([]domain.WalletTransaction, int32, error)
	HasRefund(ctx context.Context, borrowRequestID int32) (bool, error)
	// ListRefundCandidates returns RETURNED requests with a deposit, no unresolved
	// penalty and no refund transaction yet.
	ListRefundCandidates(ctx context.Context, limit int32) ([]domain.BorrowingRequest, error)
}

type FineRepository interface {
	Create(ctx context.Context, fine *domain.Fine) error
	ListByPayer(ctx context.Context, email string) ([]domain.Fine, error)
	ListDueBetween(ctx context.Context, from, to time.Time) ([]domain.Fine, error)
	// MarkOverdue flips pending fines whose due date is before now and returns them.
	MarkOverdue(ctx context.Context, now time.Time) ([]domain.Fine, error)
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}

type HistoryRepository interface {
	ListHistory(ctx context.Context, limit int32) ([]domain.RequestHistoryEntry, error)
}
