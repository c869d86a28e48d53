package domain

import "time"

type InspectionState string

const (
	InspectionStateAwaiting     InspectionState = "AWAITING_INSPECTION"
	InspectionStateFineComputed InspectionState = "FINE_COMPUTED"
	InspectionStatePenaltyPath  InspectionState = "PENALTY_PATH"
	InspectionStateCleanPath    InspectionState = "CLEAN_PATH"
	InspectionStateCompleted    InspectionState = "COMPLETED"
)

// ComponentDamage is the inspector's verdict for one component.
type ComponentDamage struct {
	ComponentID      int32   `json:"component_id"`
	Damaged          bool    `json:"damaged"`
	Value            int64   `json:"value"`
	EvidenceImageURL *string `json:"evidence_image_url,omitempty"`
}

// DamageAssessment maps component name to its damage verdict.
type DamageAssessment map[string]ComponentDamage

type BreakdownItem struct {
	Label    string     `json:"label"`
	Amount   int64      `json:"amount"`
	Kind     DetailKind `json:"kind"`
	PolicyID *int32     `json:"policy_id,omitempty"`
	ImageURL *string    `json:"image_url,omitempty"`
}

// Inspection is the in-memory session an admin works on while a kit is on the desk.
type Inspection struct {
	RequestID  int32              `json:"request_id"`
	AdminID    int32              `json:"admin_id"`
	Request    BorrowingRequest   `json:"request"`
	Components []RequestComponent `json:"components"`
	Assessment DamageAssessment   `json:"assessment"`
	Policies   []PenaltyPolicy    `json:"policies"`
	Total      int64              `json:"total"`
	Breakdown  []BreakdownItem    `json:"breakdown"`
	State      InspectionState    `json:"state"`
	OpenedAt   time.Time          `json:"opened_at"`
}

type ReturnPath string

const (
	ReturnPathPenalty ReturnPath = "PENALTY"
	ReturnPathClean   ReturnPath = "CLEAN"
)

// ReturnOutcome reports what a submitted inspection produced.
type ReturnOutcome struct {
	Request  BorrowingRequest `json:"request"`
	Path     ReturnPath       `json:"path"`
	Total    int64            `json:"total"`
	Penalty  *Penalty         `json:"penalty,omitempty"`
	Details  []PenaltyDetail  `json:"details,omitempty"`
	Fine     *Fine            `json:"fine,omitempty"`
	Warnings []string         `json:"warnings,omitempty"`
}
