// Package calculator derives what each participant owes from a session's
// items, assignments and tip/tax settings.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// ReconcileTolerance bounds the difference between the sum of participant
// totals and the distributed grand total.
var ReconcileTolerance = decimal.New(1, -12)

// ItemShare is one participant's portion of an item.
type ItemShare struct {
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Fraction float64         `json:"fraction"`
	Amount   decimal.Decimal `json:"amount"`
}

// ParticipantTotal is the calculated split for one participant.
type ParticipantTotal struct {
	ParticipantID string          `json:"participant_id"`
	Name          string          `json:"name"`
	Initials      string          `json:"initials"`
	Color         string          `json:"color"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Tip           decimal.Decimal `json:"tip"`
	Tax           decimal.Decimal `json:"tax"`
	Total         decimal.Decimal `json:"total"`
	Proportion    decimal.Decimal `json:"proportion"`
	Items         []ItemShare     `json:"items"`
}

// Settlement is the full breakdown of a session's bill.
type Settlement struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Tip        decimal.Decimal `json:"tip"`
	Tax        decimal.Decimal `json:"tax"`
	GrandTotal decimal.Decimal `json:"grand_total"`

	// UnassignedTotal is the value of items nobody claimed. It is not
	// distributed to any participant.
	UnassignedTotal decimal.Decimal `json:"unassigned_total"`

	// AssignedShare is 1 - UnassignedTotal/Subtotal, or 0 when the
	// subtotal is zero. The participant totals sum to GrandTotal × AssignedShare
	// within ReconcileTolerance: tip and tax shares are divided at
	// decimal.DivisionPrecision digits.
	AssignedShare decimal.Decimal `json:"assigned_share"`

	Participants []ParticipantTotal `json:"participants"`
}

// Participant returns the total for one participant.
func (s *Settlement) Participant(id string) (ParticipantTotal, bool) {
	for _, p := range s.Participants {
		if p.ParticipantID == id {
			return p, true
		}
	}
	return ParticipantTotal{}, false
}

// ParticipantsTotal sums every participant's final total.
func (s *Settlement) ParticipantsTotal() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range s.Participants {
		sum = sum.Add(p.Total)
	}
	return sum
}

// Settle computes per-participant totals with tip and tax distributed in
// proportion to each participant's subtotal:
//
//	total(p) = subtotal(p) + tip × subtotal(p)/subtotal + tax × subtotal(p)/subtotal
//
// Items without assignments count towards the bill subtotal but are not
// charged to anyone; they are reported as UnassignedTotal.
func Settle(state *models.SessionState) *Settlement {
	subtotal := decimal.Zero
	unassigned := decimal.Zero
	for _, item := range state.Items {
		subtotal = subtotal.Add(item.TotalPrice)
		if len(state.AssignmentsFor(item.ID)) == 0 {
			unassigned = unassigned.Add(item.TotalPrice)
		}
	}

	extras := money.TotalWithExtras(subtotal, state.Session.TipPercentage, state.Session.TaxAmount)
	s := &Settlement{
		Subtotal:        subtotal,
		Tip:             extras.Tip,
		Tax:             extras.Tax,
		GrandTotal:      extras.Total,
		UnassignedTotal: unassigned,
		AssignedShare:   decimal.Zero,
	}
	if subtotal.IsPositive() {
		s.AssignedShare = decimal.NewFromInt(1).Sub(unassigned.Div(subtotal))
	}

	totals := make(map[string]*ParticipantTotal, len(state.Participants))
	s.Participants = make([]ParticipantTotal, len(state.Participants))
	for i, p := range state.Participants {
		s.Participants[i] = ParticipantTotal{
			ParticipantID: p.ID,
			Name:          p.Name,
			Initials:      p.Initials(),
			Color:         p.Color,
			Subtotal:      decimal.Zero,
			Tip:           decimal.Zero,
			Tax:           decimal.Zero,
			Total:         decimal.Zero,
			Proportion:    decimal.Zero,
		}
		totals[p.ID] = &s.Participants[i]
	}

	for _, item := range state.Items {
		for _, a := range state.AssignmentsFor(item.ID) {
			pt, ok := totals[a.ParticipantID]
			if !ok {
				continue
			}
			amount := money.Share(item.TotalPrice, a.ShareFraction)
			pt.Subtotal = pt.Subtotal.Add(amount)
			pt.Items = append(pt.Items, ItemShare{
				ItemID:   item.ID,
				Name:     item.Name,
				Fraction: a.ShareFraction,
				Amount:   amount,
			})
		}
	}

	// Zero subtotal leaves every final total at zero.
	if !subtotal.IsPositive() {
		return s
	}
	for i := range s.Participants {
		pt := &s.Participants[i]
		pt.Proportion = pt.Subtotal.Div(subtotal)
		pt.Tip = s.Tip.Mul(pt.Subtotal).Div(subtotal)
		pt.Tax = s.Tax.Mul(pt.Subtotal).Div(subtotal)
		pt.Total = pt.Subtotal.Add(pt.Tip).Add(pt.Tax)
	}
	return s
}
