package domain

type KitStatus string

const (
	KitStatusAvailable   KitStatus = "AVAILABLE"
	KitStatusUnavailable KitStatus = "UNAVAILABLE"
	KitStatusInUse       KitStatus = "IN_USE"
)

type Kit struct {
	ID          int32       `json:"id"`
	KitName     string      `json:"kit_name"`
	Type        string      `json:"type"`
	Description string      `json:"description"`
	Status      KitStatus   `json:"status"`
	Quantity    int32       `json:"quantity"`
	Amount      int64       `json:"amount"`
	Components  []Component `json:"components,omitempty"`
}

type Component struct {
	ID            int32  `json:"id"`
	KitID         int32  `json:"kit_id"`
	ComponentName string `json:"component_name"`
	ComponentType string `json:"component_type"`
	Quantity      int32  `json:"quantity"`
	PricePerCom   int64  `json:"price_per_com"` // reference price in VND
	ImageURL      string `json:"image_url"`
}

// RequestComponent is one line of what was actually lent under a borrowing request.
type RequestComponent struct {
	ComponentID    int32  `json:"component_id"`
	ComponentName  string `json:"component_name"`
	Quantity       int32  `json:"quantity"`
	ReferencePrice int64  `json:"reference_price"`
}
