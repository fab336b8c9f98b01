package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Session represents one dining event.
type Session struct {
	// ID is the unique identifier for the session (UUID format).
	ID string `json:"id"`

	// Code is the 6-character join code shown to other diners.
	Code string `json:"code"`

	// TipPercentage is applied to the session subtotal (0–100).
	TipPercentage decimal.Decimal `json:"tip_percentage"`

	// TaxAmount is a flat, currency-denominated tax. It is not a rate.
	TaxAmount decimal.Decimal `json:"tax_amount"`

	// OwnerID references the participant who created the session.
	OwnerID string `json:"owner_id"`

	// CreatedAt is the Unix timestamp when the session was created.
	CreatedAt int64 `json:"created_at"`
}

// Participant is a person splitting the bill.
type Participant struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Name      string `json:"name"`

	// Color is cosmetic, picked from ParticipantColors.
	Color   string `json:"color"`
	IsOwner bool   `json:"is_owner"`

	JoinedAt int64 `json:"joined_at"`
}

// ParticipantColors is the avatar palette.
var ParticipantColors = []string{
	"#EF4444", // red
	"#F97316", // orange
	"#EAB308", // yellow
	"#22C55E", // green
	"#14B8A6", // teal
	"#3B82F6", // blue
	"#8B5CF6", // violet
	"#EC4899", // pink
	"#6366F1", // indigo
	"#06B6D4", // cyan
}

// ColorByIndex returns a palette color, cycling when index exceeds the palette.
func ColorByIndex(index int) string {
	if index < 0 {
		index = -index
	}
	return ParticipantColors[index%len(ParticipantColors)]
}

// Initials returns up to two uppercase initials, e.g. "Juan Pérez" -> "JP".
func (p Participant) Initials() string {
	var b strings.Builder
	count := 0
	for _, word := range strings.Fields(p.Name) {
		if count == 2 {
			break
		}
		r := []rune(word)
		b.WriteString(strings.ToUpper(string(r[0])))
		count++
	}
	return b.String()
}
