package domain

import "time"

type TransactionType string

const (
	TransactionTypeDepositHold    TransactionType = "DEPOSIT_HOLD"
	TransactionTypeDepositRefund  TransactionType = "DEPOSIT_REFUND"
	TransactionTypePenaltyPayment TransactionType = "PENALTY_PAYMENT"
	TransactionTypeTopUp          TransactionType = "TOP_UP"
)

type WalletTransaction struct {
	ID              int32           `json:"id"`
	AccountID       int32           `json:"account_id"`
	Amount          int64           `json:"amount"` // positive for credit, negative for debit
	Type            TransactionType `json:"type"`
	BorrowRequestID *int32          `json:"borrow_request_id,omitempty"`
	Description     string          `json:"description"`
	CreatedAt       time.Time       `json:"created_at"`
}

type WalletSummary struct {
	Balance             int64 `json:"balance"`
	HeldDeposits        int64 `json:"held_deposits"`
	UnresolvedPenalties int64 `json:"unresolved_penalties"`
}

// RefundStatus explains whether a request's deposit has been or can be refunded.
type RefundStatus struct {
	RequestID         int32           `json:"request_id"`
	Status            BorrowingStatus `json:"status"`
	DepositAmount     int64           `json:"deposit_amount"`
	Refunded          bool            `json:"refunded"`
	UnresolvedPenalty bool            `json:"unresolved_penalty"`
	Eligible          bool            `json:"eligible"`
}
