package domain

import "time"

type NotificationSubType string

const (
	NotificationSubTypeBorrowApproved   NotificationSubType = "BORROW_APPROVED"
	NotificationSubTypeBorrowRejected   NotificationSubType = "BORROW_REJECTED"
	NotificationSubTypeReturnCompleted  NotificationSubType = "RETURN_COMPLETED"
	NotificationSubTypeDepositRefund    NotificationSubType = "DEPOSIT_REFUND"
	NotificationSubTypePenaltyIssued    NotificationSubType = "PENALTY_ISSUED"
	NotificationSubTypeGroupPenalty     NotificationSubType = "GROUP_PENALTY"
	NotificationSubTypeFineDueReminder  NotificationSubType = "FINE_DUE_REMINDER"
	NotificationSubTypeFineOverdue      NotificationSubType = "FINE_OVERDUE"
	NotificationSubTypeNewBorrowRequest NotificationSubType = "NEW_BORROW_REQUEST"
)

// NotificationRequest is what the core asks the dispatcher to deliver.
type NotificationRequest struct {
	UserID  int32               `json:"user_id"`
	SubType NotificationSubType `json:"sub_type"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	// Attributes carry references such as the request id for deep links.
	Attributes map[string]string `json:"attributes,omitempty"`
}

type Notification struct {
	ID         int32               `json:"id"`
	UserID     int32               `json:"user_id"`
	SubType    NotificationSubType `json:"sub_type"`
	Title      string              `json:"title"`
	Message    string              `json:"message"`
	IsRead     bool                `json:"is_read"`
	Attributes map[string]string   `json:"attributes"`
	CreatedAt  time.Time           `json:"created_at"`
}
