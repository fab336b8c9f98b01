package models

import "github.com/shopspring/decimal"

// Item represents a single line item on the receipt.
type Item struct {
	// ID is the unique identifier for the item (UUID format).
	ID        string `json:"id"`
	SessionID string `json:"session_id"`

	// Name is the line description (e.g., "Pizza Margarita").
	Name string `json:"name"`

	// Quantity is a positive integer.
	Quantity int `json:"quantity"`

	// UnitPrice is the non-negative price of one unit.
	UnitPrice decimal.Decimal `json:"unit_price"`

	// TotalPrice is always Quantity × UnitPrice.
	TotalPrice decimal.Decimal `json:"total_price"`

	// OrderIndex keeps capture / manual-entry order stable.
	OrderIndex int `json:"order_index"`

	// IsShared is derived by the assignment engine on every toggle.
	IsShared bool `json:"is_shared"`

	// ManuallyAdded is false for items that came from receipt recognition.
	ManuallyAdded bool `json:"manually_added"`

	// OCRConfidence is the recognizer's confidence in [0, 1], when known.
	OCRConfidence *float64 `json:"ocr_confidence,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// Assignment records that a participant owns ShareFraction of an item.
// It has no identity beyond the (ItemID, ParticipantID) pair; ID exists so
// the store and change events can address it.
type Assignment struct {
	ID            string  `json:"id"`
	ItemID        string  `json:"item_id"`
	ParticipantID string  `json:"participant_id"`
	ShareFraction float64 `json:"share_fraction"`
}

// DetectedItem is one line produced by the receipt recognition collaborator.
type DetectedItem struct {
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Confidence float64         `json:"confidence"`
}
