package calculator

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/models"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func item(id string, qty int, unit int64) models.Item {
	return models.Item{ID: id, Name: id, Quantity: qty, UnitPrice: d(unit), TotalPrice: d(unit).Mul(d(int64(qty)))}
}

func assign(itemID, participantID string, fraction float64) models.Assignment {
	return models.Assignment{ID: itemID + "-" + participantID, ItemID: itemID, ParticipantID: participantID, ShareFraction: fraction}
}

// closeTo compares amounts to the peso's ten-thousandth; fractions like
// 1/3 cannot be represented exactly.
func closeTo(got decimal.Decimal, want int64) bool {
	return got.Sub(d(want)).Abs().LessThan(decimal.New(1, -4))
}

func TestSettle(t *testing.T) {
	participants := []models.Participant{
		{ID: "A", Name: "Ana", IsOwner: true},
		{ID: "B", Name: "Beto"},
		{ID: "C", Name: "Caro"},
	}

	tests := []struct {
		name         string
		state        *models.SessionState
		validateFunc func(t *testing.T, s *Settlement)
	}{
		{
			name: "single holder pays everything plus tip and tax",
			state: &models.SessionState{
				Session:      models.Session{TipPercentage: d(10), TaxAmount: d(5000)},
				Participants: participants[:1],
				Items:        []models.Item{item("bandeja", 2, 30000), item("jugo", 4, 10000)},
				Assignments:  []models.Assignment{assign("bandeja", "A", 1), assign("jugo", "A", 1)},
			},
			validateFunc: func(t *testing.T, s *Settlement) {
				if !s.Subtotal.Equal(d(100000)) || !s.Tip.Equal(d(10000)) || !s.GrandTotal.Equal(d(115000)) {
					t.Fatalf("bill = %s/%s/%s, want 100000/10000/115000", s.Subtotal, s.Tip, s.GrandTotal)
				}
				a := s.Participants[0]
				if !a.Subtotal.Equal(d(100000)) {
					t.Errorf("subtotal = %s, want 100000", a.Subtotal)
				}
				if !a.Proportion.Equal(d(1)) {
					t.Errorf("proportion = %s, want 1", a.Proportion)
				}
				if !a.Total.Equal(d(115000)) || !a.Total.Equal(s.GrandTotal) {
					t.Errorf("total = %s, want 115000", a.Total)
				}
				if !s.UnassignedTotal.IsZero() {
					t.Errorf("unassigned = %s, want 0", s.UnassignedTotal)
				}
			},
		},
		{
			name: "unassigned items are excluded from distribution",
			state: &models.SessionState{
				Session:      models.Session{TipPercentage: d(10), TaxAmount: decimal.Zero},
				Participants: participants[:2],
				Items:        []models.Item{item("asado", 1, 60000), item("vino", 1, 40000)},
				Assignments:  []models.Assignment{assign("asado", "A", 0.5), assign("asado", "B", 0.5)},
			},
			validateFunc: func(t *testing.T, s *Settlement) {
				if !s.UnassignedTotal.Equal(d(40000)) {
					t.Errorf("unassigned = %s, want 40000", s.UnassignedTotal)
				}
				if !s.GrandTotal.Equal(d(110000)) {
					t.Errorf("grand total = %s, want 110000", s.GrandTotal)
				}
				if !s.AssignedShare.Equal(decimal.RequireFromString("0.6")) {
					t.Errorf("assigned share = %s, want 0.6", s.AssignedShare)
				}
				sum := s.ParticipantsTotal()
				if !sum.Equal(d(66000)) {
					t.Errorf("participant totals = %s, want 66000", sum)
				}
				if !sum.Equal(s.GrandTotal.Mul(s.AssignedShare)) {
					t.Errorf("participant totals %s != grand total × assigned share", sum)
				}
				for _, p := range s.Participants {
					if !p.Total.Equal(d(33000)) {
						t.Errorf("%s total = %s, want 33000", p.Name, p.Total)
					}
				}
			},
		},
		{
			name: "three-way split with flat tax",
			state: &models.SessionState{
				Session:      models.Session{TipPercentage: decimal.Zero, TaxAmount: d(3000)},
				Participants: participants,
				Items:        []models.Item{item("pizza", 1, 30000)},
				Assignments: []models.Assignment{
					assign("pizza", "A", 1.0/3), assign("pizza", "B", 1.0/3), assign("pizza", "C", 1.0/3),
				},
			},
			validateFunc: func(t *testing.T, s *Settlement) {
				for _, p := range s.Participants {
					if !closeTo(p.Subtotal, 10000) {
						t.Errorf("%s subtotal = %s, want ~10000", p.Name, p.Subtotal)
					}
					if !closeTo(p.Tax, 1000) {
						t.Errorf("%s tax = %s, want ~1000", p.Name, p.Tax)
					}
					if !closeTo(p.Total, 11000) {
						t.Errorf("%s total = %s, want ~11000", p.Name, p.Total)
					}
					if len(p.Items) != 1 || p.Items[0].ItemID != "pizza" {
						t.Errorf("%s item shares = %+v", p.Name, p.Items)
					}
				}
				if !closeTo(s.ParticipantsTotal(), 33000) {
					t.Errorf("participant totals = %s, want ~33000", s.ParticipantsTotal())
				}
			},
		},
		{
			name: "three-way split reconciles with the grand total",
			state: &models.SessionState{
				Session:      models.Session{TipPercentage: d(10), TaxAmount: d(5000)},
				Participants: participants,
				Items:        []models.Item{item("pizza", 1, 30000)},
				Assignments: []models.Assignment{
					assign("pizza", "A", 1.0/3), assign("pizza", "B", 1.0/3), assign("pizza", "C", 1.0/3),
				},
			},
			validateFunc: func(t *testing.T, s *Settlement) {
				if !s.GrandTotal.Equal(d(38000)) {
					t.Fatalf("grand total = %s, want 38000", s.GrandTotal)
				}
				for _, p := range s.Participants {
					if !p.Subtotal.Equal(d(10000)) {
						t.Errorf("%s subtotal = %s, want exactly 10000", p.Name, p.Subtotal)
					}
					if !p.Tip.Equal(d(1000)) {
						t.Errorf("%s tip = %s, want exactly 1000", p.Name, p.Tip)
					}
				}
				diff := s.ParticipantsTotal().Sub(s.GrandTotal).Abs()
				if diff.GreaterThan(ReconcileTolerance) {
					t.Errorf("participant totals = %s, grand total %s, diff %s", s.ParticipantsTotal(), s.GrandTotal, diff)
				}
			},
		},
		{
			name: "zero subtotal yields zero totals",
			state: &models.SessionState{
				Session:      models.Session{TipPercentage: d(10), TaxAmount: d(2000)},
				Participants: participants[:2],
				Items:        []models.Item{item("agua", 1, 0)},
				Assignments:  []models.Assignment{assign("agua", "A", 1)},
			},
			validateFunc: func(t *testing.T, s *Settlement) {
				for _, p := range s.Participants {
					if !p.Total.IsZero() || !p.Proportion.IsZero() {
						t.Errorf("%s total/proportion = %s/%s, want 0", p.Name, p.Total, p.Proportion)
					}
				}
				if !s.AssignedShare.IsZero() {
					t.Errorf("assigned share = %s, want 0", s.AssignedShare)
				}
				if !s.GrandTotal.Equal(d(2000)) {
					t.Errorf("grand total = %s, want 2000", s.GrandTotal)
				}
			},
		},
		{
			name: "participant without items owes nothing",
			state: &models.SessionState{
				Session:      models.Session{TipPercentage: d(10), TaxAmount: decimal.Zero},
				Participants: participants[:2],
				Items:        []models.Item{item("cafe", 1, 5000)},
				Assignments:  []models.Assignment{assign("cafe", "A", 1)},
			},
			validateFunc: func(t *testing.T, s *Settlement) {
				b, ok := s.Participant("B")
				if !ok {
					t.Fatal("participant B missing from settlement")
				}
				if !b.Total.IsZero() || len(b.Items) != 0 {
					t.Errorf("B = %+v, want zero total and no items", b)
				}
				if b.Initials != "B" {
					t.Errorf("initials = %q, want %q", b.Initials, "B")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Settle(tt.state)
			if len(s.Participants) != len(tt.state.Participants) {
				t.Fatalf("got %d participants, want %d", len(s.Participants), len(tt.state.Participants))
			}
			tt.validateFunc(t, s)
		})
	}
}

func TestTransfers(t *testing.T) {
	state := &models.SessionState{
		Session: models.Session{TipPercentage: d(10)},
		Participants: []models.Participant{
			{ID: "A", Name: "Ana", IsOwner: true},
			{ID: "B", Name: "Beto"},
			{ID: "C", Name: "Caro"},
		},
		Items:       []models.Item{item("asado", 1, 60000)},
		Assignments: []models.Assignment{assign("asado", "A", 0.5), assign("asado", "B", 0.5)},
	}
	s := Settle(state)

	transfers := Transfers(s, "A")
	if len(transfers) != 1 {
		t.Fatalf("got %d transfers, want 1: %+v", len(transfers), transfers)
	}
	tr := transfers[0]
	if tr.From != "B" || tr.To != "A" || !tr.Amount.Equal(d(33000)) {
		t.Errorf("transfer = %+v, want B -> A 33000", tr)
	}

	if got := Transfers(s, "nobody"); got != nil {
		t.Errorf("unknown payer transfers = %+v, want nil", got)
	}
}

func TestSummary(t *testing.T) {
	state := &models.SessionState{
		Session: models.Session{TipPercentage: d(10), TaxAmount: d(5000)},
		Participants: []models.Participant{
			{ID: "A", Name: "Ana"},
		},
		Items: []models.Item{item("bandeja", 2, 30000), item("jugo", 4, 10000), item("postre", 1, 12000)},
		Assignments: []models.Assignment{
			assign("bandeja", "A", 1), assign("jugo", "A", 1),
		},
	}
	summary := Summary(state, Settle(state))

	for _, want := range []string{"Ana:", "Subtotal:", "Propina (10%)", "Impuestos:", "Sin asignar:", "Total:"} {
		if !strings.Contains(summary, want) {
			t.Errorf("summary missing %q:\n%s", want, summary)
		}
	}

	state.Session.TipPercentage = decimal.Zero
	state.Session.TaxAmount = decimal.Zero
	state.Assignments = append(state.Assignments, assign("postre", "A", 1))
	summary = Summary(state, Settle(state))
	for _, absent := range []string{"Propina", "Impuestos", "Sin asignar"} {
		if strings.Contains(summary, absent) {
			t.Errorf("summary should omit %q:\n%s", absent, summary)
		}
	}
}
