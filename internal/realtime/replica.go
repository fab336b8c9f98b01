package realtime

import (
	"sync"

	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// Replica is a client-side copy of a session. Local edits are applied
// optimistically and later corrected by authoritative events.
//
// Reconciliation is last-write-wins: every entity, and every item's
// assignment set as a whole, remembers the Seq of the event that last wrote
// it, and older events are ignored for it.
type Replica struct {
	mu       sync.Mutex
	state    *models.SessionState
	versions map[string]int64
	floor    int64
	pending  map[string]int
}

// NewReplica starts a replica from a snapshot taken at seq.
func NewReplica(state *models.SessionState, seq int64) *Replica {
	r := &Replica{}
	r.reset(state, seq)
	return r
}

func (r *Replica) reset(state *models.SessionState, seq int64) {
	if state == nil {
		state = &models.SessionState{}
	}
	r.state = state.Clone()
	r.versions = make(map[string]int64)
	r.floor = seq
	r.pending = make(map[string]int)
}

// State returns a copy of the replica's current view.
func (r *Replica) State() *models.SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.Clone()
}

// Pending reports whether the item has local edits not yet confirmed by an
// authoritative event.
func (r *Replica) Pending(itemID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending[itemID] > 0
}

// ApplyLocal applies changes computed locally, before the server confirms
// them, and marks the touched items pending.
func (r *Replica) ApplyLocal(changes []models.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range changes {
		applyChange(r.state, c)
		if itemID := c.ItemID(); itemID != "" {
			r.pending[itemID]++
		}
	}
}

// ApplyRemote merges an authoritative event. Entity changes are applied
// per entity; assignments are replaced per item by the event's full set.
// When the event carries no set for a touched item, the item's assignment
// changes are applied and its fractions re-derived as an equal split.
// It reports whether anything in the event was newer than the replica.
func (r *Replica) ApplyRemote(ev models.Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	applied := false
	var touched []string
	seen := make(map[string]bool)
	touch := func(itemID string) {
		if itemID != "" && !seen[itemID] {
			seen[itemID] = true
			touched = append(touched, itemID)
		}
	}

	for _, c := range ev.Changes {
		if c.Entity == models.EntityAssignment {
			touch(c.ItemID())
			continue
		}
		if c.Entity == models.EntityItem {
			touch(c.ID)
		}
		key := string(c.Entity) + ":" + c.ID
		if ev.Seq <= r.version(key) {
			continue
		}
		applyChange(r.state, c)
		r.versions[key] = ev.Seq
		applied = true
	}
	for itemID := range ev.ItemAssignments {
		touch(itemID)
	}

	for _, itemID := range touched {
		key := "assignments:" + itemID
		if ev.Seq <= r.version(key) {
			continue
		}
		if set, ok := ev.ItemAssignments[itemID]; ok {
			replaceAssignments(r.state, itemID, set)
		} else {
			for _, c := range ev.Changes {
				if c.Entity == models.EntityAssignment && c.ItemID() == itemID {
					applyChange(r.state, c)
				}
			}
			rederive(r.state, itemID)
		}
		r.versions[key] = ev.Seq
		delete(r.pending, itemID)
		applied = true
	}
	return applied
}

// Resync replaces the whole view with a snapshot taken at seq, discarding
// pending local edits. Callers use it after a local edit failed on the
// server or after missing events.
func (r *Replica) Resync(state *models.SessionState, seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset(state, seq)
}

func (r *Replica) version(key string) int64 {
	if v, ok := r.versions[key]; ok && v > r.floor {
		return v
	}
	return r.floor
}

func replaceAssignments(state *models.SessionState, itemID string, set []models.Assignment) {
	kept := state.Assignments[:0]
	for _, a := range state.Assignments {
		if a.ItemID != itemID {
			kept = append(kept, a)
		}
	}
	state.Assignments = kept
	if _, ok := state.Item(itemID); !ok {
		return
	}
	state.Assignments = append(state.Assignments, set...)
}

func rederive(state *models.SessionState, itemID string) {
	n := len(state.AssignmentsFor(itemID))
	share := money.EqualShare(n)
	for i := range state.Assignments {
		if state.Assignments[i].ItemID == itemID {
			state.Assignments[i].ShareFraction = share
		}
	}
}

// applyChange applies one change to state. Inserts of an existing ID and
// updates of a missing one are treated as upserts; deletes cascade to
// dependent assignments.
func applyChange(state *models.SessionState, c models.Change) {
	switch c.Entity {
	case models.EntitySession:
		if c.Session != nil && c.Type != models.ChangeDelete {
			state.Session = *c.Session
		}
	case models.EntityParticipant:
		if c.Type == models.ChangeDelete {
			state.Participants = removeWhere(state.Participants, func(p models.Participant) bool { return p.ID == c.ID })
			state.Assignments = removeWhere(state.Assignments, func(a models.Assignment) bool { return a.ParticipantID == c.ID })
			return
		}
		if c.Participant != nil {
			state.Participants = upsert(state.Participants, *c.Participant, func(p models.Participant) bool { return p.ID == c.ID })
		}
	case models.EntityItem:
		if c.Type == models.ChangeDelete {
			state.Items = removeWhere(state.Items, func(it models.Item) bool { return it.ID == c.ID })
			state.Assignments = removeWhere(state.Assignments, func(a models.Assignment) bool { return a.ItemID == c.ID })
			return
		}
		if c.Item != nil {
			state.Items = upsert(state.Items, *c.Item, func(it models.Item) bool { return it.ID == c.ID })
		}
	case models.EntityAssignment:
		if c.Type == models.ChangeDelete {
			state.Assignments = removeWhere(state.Assignments, func(a models.Assignment) bool { return a.ID == c.ID })
			return
		}
		if c.Assignment != nil {
			a := *c.Assignment
			// One assignment per (item, participant), whatever its ID.
			state.Assignments = removeWhere(state.Assignments, func(x models.Assignment) bool {
				return x.ID != a.ID && x.ItemID == a.ItemID && x.ParticipantID == a.ParticipantID
			})
			state.Assignments = upsert(state.Assignments, a, func(x models.Assignment) bool { return x.ID == a.ID })
		}
	}
}

func upsert[T any](list []T, v T, match func(T) bool) []T {
	for i := range list {
		if match(list[i]) {
			list[i] = v
			return list
		}
	}
	return append(list, v)
}

func removeWhere[T any](list []T, match func(T) bool) []T {
	out := list[:0]
	for _, v := range list {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}
