package domain

import "time"

type PenaltyPolicy struct {
	ID         int32  `json:"id"`
	PolicyName string `json:"policy_name"`
	Type       string `json:"type"`
	Amount     int64  `json:"amount"`
}

type Penalty struct {
	ID              int32     `json:"id"`
	BorrowRequestID int32     `json:"borrow_request_id"`
	AccountID       int32     `json:"account_id"`
	TotalAmount     int64     `json:"total_amount"`
	Resolved        bool      `json:"resolved"`
	TakeEffectDate  time.Time `json:"take_effect_date"`
	Note            string    `json:"note"`
	CreatedAt       time.Time `json:"created_at"`
}

type DetailKind string

const (
	DetailKindDamage DetailKind = "DAMAGE"
	DetailKindPolicy DetailKind = "POLICY"
)

// PenaltyDetail is one itemized line of a Penalty. Damage lines carry no
// PoliciesID; policy lines always do.
type PenaltyDetail struct {
	ID          int32     `json:"id"`
	PenaltyID   int32     `json:"penalty_id"`
	Description string    `json:"description"`
	Amount      int64     `json:"amount"`
	ImageURL    *string   `json:"image_url,omitempty"`
	PoliciesID  *int32    `json:"policies_id"`
	CreatedAt   time.Time `json:"created_at"`
}

func (d PenaltyDetail) Kind() DetailKind {
	if d.PoliciesID != nil {
		return DetailKindPolicy
	}
	return DetailKindDamage
}

type FineStatus string

const (
	FineStatusPending FineStatus = "pending"
	FineStatusOverdue FineStatus = "overdue"
	FineStatusPaid    FineStatus = "paid"
)

// Fine is what the payer sees: who owes how much for which rental, and by when.
type Fine struct {
	ID           int32      `json:"id" db:"id"`
	RentalID     int32      `json:"rental_id" db:"rental_id"`
	PenaltyID    int32      `json:"penalty_id" db:"penalty_id"`
	KitID        int32      `json:"kit_id" db:"kit_id"`
	StudentEmail string     `json:"student_email" db:"student_email"`
	LeaderEmail  *string    `json:"leader_email,omitempty" db:"leader_email"`
	FineAmount   int64      `json:"fine_amount" db:"fine_amount"`
	Status       FineStatus `json:"status" db:"status"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	DueDate      time.Time  `json:"due_date" db:"due_date"`
}

// PayerEmail is the address the fine is filed against.
func (f Fine) PayerEmail() string {
	if f.LeaderEmail != nil && *f.LeaderEmail != "" {
		return *f.LeaderEmail
	}
	return f.StudentEmail
}
