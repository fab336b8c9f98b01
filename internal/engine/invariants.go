package engine

import (
	"fmt"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// CheckInvariants validates a state against the engine invariants. It is
// exported so replicas and stores can verify states they did not produce.
func CheckInvariants(state *models.SessionState) error {
	return checkInvariants(state)
}

func checkInvariants(state *models.SessionState) error {
	items := make(map[string]bool, len(state.Items))
	for _, item := range state.Items {
		items[item.ID] = true
		if !item.TotalPrice.Equal(money.LineTotal(item.Quantity, item.UnitPrice)) {
			return apperrors.Invariant(fmt.Sprintf("item %s total %s != %d x %s",
				item.ID, item.TotalPrice, item.Quantity, item.UnitPrice))
		}
	}
	participants := make(map[string]bool, len(state.Participants))
	for _, p := range state.Participants {
		participants[p.ID] = true
	}

	type pair struct{ item, participant string }
	seen := make(map[pair]bool, len(state.Assignments))
	fractions := make(map[string][]float64)

	for _, a := range state.Assignments {
		if !items[a.ItemID] {
			return apperrors.Invariant(fmt.Sprintf("assignment %s references missing item %s", a.ID, a.ItemID))
		}
		if !participants[a.ParticipantID] {
			return apperrors.Invariant(fmt.Sprintf("assignment %s references missing participant %s", a.ID, a.ParticipantID))
		}
		k := pair{a.ItemID, a.ParticipantID}
		if seen[k] {
			return apperrors.Invariant(fmt.Sprintf("duplicate assignment of item %s to participant %s", a.ItemID, a.ParticipantID))
		}
		seen[k] = true
		if a.ShareFraction <= 0 || a.ShareFraction > 1+money.FractionTolerance {
			return apperrors.Invariant(fmt.Sprintf("assignment %s share fraction %v outside (0, 1]", a.ID, a.ShareFraction))
		}
		fractions[a.ItemID] = append(fractions[a.ItemID], a.ShareFraction)
	}

	for itemID, fs := range fractions {
		if !money.FractionsBalanced(fs) {
			return apperrors.Invariant(fmt.Sprintf("item %s share fractions sum to %.12f", itemID, money.FractionSum(fs)))
		}
	}
	return nil
}
