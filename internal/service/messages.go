package service

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/models"
)

type CreateSessionRequest struct {
	OwnerName string `json:"owner_name"`
}

type JoinSessionRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// JoinResponse is returned to whoever creates or joins a session. Token
// authenticates later calls as Participant.
type JoinResponse struct {
	Session     models.Session     `json:"session"`
	Participant models.Participant `json:"participant"`
	Token       string             `json:"token"`
	Seq         int64              `json:"seq"`
}

type GetSessionRequest struct {
	SessionID string `json:"session_id"`
}

// GetSessionResponse is a snapshot of a session. Seq is the last event
// published before the snapshot was taken.
type GetSessionResponse struct {
	State      *models.SessionState   `json:"state"`
	Settlement *calculator.Settlement `json:"settlement"`
	Seq        int64                  `json:"seq"`
}

type AddParticipantRequest struct {
	SessionID string `json:"session_id"`
	Name      string `json:"name"`
}

type AddParticipantResponse struct {
	Participant models.Participant `json:"participant"`
	Seq         int64              `json:"seq"`
}

type RemoveParticipantRequest struct {
	SessionID     string `json:"session_id"`
	ParticipantID string `json:"participant_id"`
}

// MutationResponse carries the ordered changes an operation applied.
type MutationResponse struct {
	Changes []models.Change `json:"changes"`
	Seq     int64           `json:"seq"`
}

// UpdateSettingsRequest changes tip and/or tax. Omitted fields keep their
// current value.
type UpdateSettingsRequest struct {
	SessionID     string           `json:"session_id"`
	TipPercentage *decimal.Decimal `json:"tip_percentage,omitempty"`
	TaxAmount     *decimal.Decimal `json:"tax_amount,omitempty"`
}

type UpdateSettingsResponse struct {
	Session models.Session `json:"session"`
	Seq     int64          `json:"seq"`
}

type AddItemRequest struct {
	SessionID string          `json:"session_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type EditItemRequest struct {
	SessionID string           `json:"session_id"`
	ItemID    string           `json:"item_id"`
	Name      *string          `json:"name,omitempty"`
	Quantity  *int             `json:"quantity,omitempty"`
	UnitPrice *decimal.Decimal `json:"unit_price,omitempty"`
}

type ItemResponse struct {
	Item models.Item `json:"item"`
	Seq  int64       `json:"seq"`
}

type DeleteItemRequest struct {
	SessionID string `json:"session_id"`
	ItemID    string `json:"item_id"`
}

// ToggleAssignmentRequest claims or releases an item. An empty
// ParticipantID means the caller.
type ToggleAssignmentRequest struct {
	SessionID     string `json:"session_id"`
	ItemID        string `json:"item_id"`
	ParticipantID string `json:"participant_id,omitempty"`
}

// ToggleAssignmentResponse returns the item's full assignment set after the
// toggle so clients can replace their optimistic copy.
type ToggleAssignmentResponse struct {
	Assigned    bool                `json:"assigned"`
	Item        models.Item         `json:"item"`
	Assignments []models.Assignment `json:"assignments"`
	Seq         int64               `json:"seq"`
}

// GetSettlementRequest asks for the bill breakdown. PayerID defaults to the
// session owner.
type GetSettlementRequest struct {
	SessionID string `json:"session_id"`
	PayerID   string `json:"payer_id,omitempty"`
}

type GetSettlementResponse struct {
	Settlement *calculator.Settlement `json:"settlement"`
	Transfers  []calculator.Transfer  `json:"transfers"`
	Summary    string                 `json:"summary"`
}

type SubscribeRequest struct {
	SessionID string `json:"session_id"`
}

// ReceiptResponse is the body of the receipt upload endpoint. Items are
// returned even when saving them failed.
type ReceiptResponse struct {
	Items      []models.DetectedItem `json:"items"`
	Saved      bool                  `json:"saved"`
	SavedItems []models.Item         `json:"saved_items,omitempty"`
	Error      string                `json:"error,omitempty"`
}
