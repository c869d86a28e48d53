package domain

import "time"

type RequestType string

const (
	RequestTypeBorrowKit       RequestType = "BORROW_KIT"
	RequestTypeBorrowComponent RequestType = "BORROW_COMPONENT"
)

type BorrowingStatus string

const (
	BorrowingStatusPending  BorrowingStatus = "PENDING"
	BorrowingStatusApproved BorrowingStatus = "APPROVED"
	BorrowingStatusRejected BorrowingStatus = "REJECTED"
	BorrowingStatusBorrowed BorrowingStatus = "BORROWED"
	BorrowingStatusReturned BorrowingStatus = "RETURNED"
)

// allowedTransitions lists every status change the backend is allowed to write.
// BORROWED is accepted when read from the store but is never produced here.
var allowedTransitions = map[BorrowingStatus][]BorrowingStatus{
	BorrowingStatusPending:  {BorrowingStatusApproved, BorrowingStatusRejected},
	BorrowingStatusApproved: {BorrowingStatusReturned},
}

// CanTransitionTo reports whether a request in status s may move to next.
func (s BorrowingStatus) CanTransitionTo(next BorrowingStatus) bool {
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the request can no longer change.
func (s BorrowingStatus) IsTerminal() bool {
	return s == BorrowingStatusReturned || s == BorrowingStatusRejected
}

type BorrowingRequest struct {
	ID               int32           `json:"id" db:"id"`
	KitID            int32           `json:"kit_id" db:"kit_id"`
	RequesterID      int32           `json:"requester_id" db:"requester_id"`
	RequestType      RequestType     `json:"request_type" db:"request_type"`
	DepositAmount    int64           `json:"deposit_amount" db:"deposit_amount"`
	Status           BorrowingStatus `json:"status" db:"status"`
	Reason           string          `json:"reason" db:"reason"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
	ApprovedDate     *time.Time      `json:"approved_date,omitempty" db:"approved_date"`
	ExpectReturnDate *time.Time      `json:"expect_return_date,omitempty" db:"expect_return_date"`
	ActualReturnDate *time.Time      `json:"actual_return_date,omitempty" db:"actual_return_date"`
	IsLate           bool            `json:"is_late" db:"is_late"`
}

// RequestHistoryEntry is the read model for completed requests shown in history.
type RequestHistoryEntry struct {
	ID               int32           `json:"id" db:"id"`
	KitID            int32           `json:"kit_id" db:"kit_id"`
	KitName          string          `json:"kit_name" db:"kit_name"`
	RequesterID      int32           `json:"requester_id" db:"requester_id"`
	RequesterEmail   string          `json:"requester_email" db:"requester_email"`
	Status           BorrowingStatus `json:"status" db:"status"`
	DepositAmount    int64           `json:"deposit_amount" db:"deposit_amount"`
	ActualReturnDate *time.Time      `json:"actual_return_date,omitempty" db:"actual_return_date"`
	IsLate           bool            `json:"is_late" db:"is_late"`
	PenaltyTotal     *int64          `json:"penalty_total,omitempty" db:"penalty_total"`
}
