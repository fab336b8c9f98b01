package engine

import (
	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// ToggleAssignment claims or un-claims an item for a participant.
//
// Un-claiming deletes the assignment and splits the item equally among the
// remaining holders. Claiming first rewrites every existing holder to
// 1/(n+1) and then inserts the new assignment with the same fraction.
// Either way the item's IsShared flag is rewritten last.
//
// The returned bool is true when the participant now holds the item.
func (e *Engine) ToggleAssignment(itemID, participantID string) (bool, []models.Change, error) {
	var assigned bool
	changes, err := e.mutate("toggle_assignment", func(w *working) error {
		ii := w.itemIndex(itemID)
		if ii < 0 {
			return apperrors.NotFound("item", itemID)
		}
		if w.participantIndex(participantID) < 0 {
			return apperrors.NotFound("participant", participantID)
		}

		if existing := w.assignmentIndex(itemID, participantID); existing >= 0 {
			w.deleteAssignment(existing)
			remaining := w.countAssignments(itemID)
			w.renormalize(itemID, remaining)
			w.state.Items[ii].IsShared = sharedAfterRemove(remaining)
			w.updateItem(ii)
			return nil
		}

		count := w.countAssignments(itemID) + 1
		w.renormalize(itemID, count)
		a := models.Assignment{
			ID:            e.newID(),
			ItemID:        itemID,
			ParticipantID: participantID,
			ShareFraction: money.EqualShare(count),
		}
		w.state.Assignments = append(w.state.Assignments, a)
		w.emit(models.Change{Type: models.ChangeInsert, Entity: models.EntityAssignment, ID: a.ID, Assignment: &a})
		w.state.Items[ii].IsShared = sharedAfterAdd(count)
		w.updateItem(ii)
		assigned = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return assigned, changes, nil
}

// sharedAfterRemove and sharedAfterAdd intentionally differ: the remove path
// reports shared only above two remaining holders, the add path as soon as
// anyone holds the item.
func sharedAfterRemove(remaining int) bool { return remaining > 2 }

func sharedAfterAdd(countAfter int) bool { return countAfter >= 1 }

// renormalize sets every current assignment of itemID to 1/n, emitting one
// update per assignment. With n == 0 there is nothing to rewrite.
func (w *working) renormalize(itemID string, n int) {
	if n <= 0 {
		return
	}
	share := money.EqualShare(n)
	for i := range w.state.Assignments {
		if w.state.Assignments[i].ItemID != itemID {
			continue
		}
		w.state.Assignments[i].ShareFraction = share
		a := w.state.Assignments[i]
		w.emit(models.Change{Type: models.ChangeUpdate, Entity: models.EntityAssignment, ID: a.ID, Assignment: &a})
	}
}

func (w *working) deleteAssignment(i int) {
	a := w.state.Assignments[i]
	w.state.Assignments = append(w.state.Assignments[:i], w.state.Assignments[i+1:]...)
	w.emit(models.Change{Type: models.ChangeDelete, Entity: models.EntityAssignment, ID: a.ID, Assignment: &a})
}

// RemoveParticipant deletes every assignment the participant holds, splits
// each affected item equally among its remaining holders, and finally
// deletes the participant. The session owner cannot be removed.
func (e *Engine) RemoveParticipant(participantID string) ([]models.Change, error) {
	return e.mutate("remove_participant", func(w *working) error {
		pi := w.participantIndex(participantID)
		if pi < 0 {
			return apperrors.NotFound("participant", participantID)
		}
		if w.state.Participants[pi].IsOwner {
			return apperrors.Validation("participant_id", "the session owner cannot be removed")
		}

		var affected []string
		seen := make(map[string]bool)
		for i := 0; i < len(w.state.Assignments); {
			a := w.state.Assignments[i]
			if a.ParticipantID != participantID {
				i++
				continue
			}
			if !seen[a.ItemID] {
				seen[a.ItemID] = true
				affected = append(affected, a.ItemID)
			}
			w.deleteAssignment(i)
		}

		for _, itemID := range affected {
			remaining := w.countAssignments(itemID)
			w.renormalize(itemID, remaining)
			if ii := w.itemIndex(itemID); ii >= 0 {
				w.state.Items[ii].IsShared = sharedAfterRemove(remaining)
				w.updateItem(ii)
			}
		}

		p := w.state.Participants[pi]
		w.state.Participants = append(w.state.Participants[:pi], w.state.Participants[pi+1:]...)
		w.emit(models.Change{Type: models.ChangeDelete, Entity: models.EntityParticipant, ID: p.ID, Participant: &p})
		return nil
	})
}
