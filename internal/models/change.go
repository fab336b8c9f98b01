package models

// ChangeType is the kind of store operation.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// EntityType names the table a change applies to.
type EntityType string

const (
	EntitySession     EntityType = "session"
	EntityParticipant EntityType = "participant"
	EntityItem        EntityType = "item"
	EntityAssignment  EntityType = "assignment"
)

// Change is one insert/update/delete of one entity. A logical operation is
// an ordered []Change; the order is the order the store must apply them in.
//
// Exactly one payload pointer matching Entity is set for inserts and
// updates. Deletes carry only ID (and, for assignments, the deleted row so
// subscribers know which item it belonged to).
type Change struct {
	Type      ChangeType `json:"type"`
	Entity    EntityType `json:"entity"`
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`

	Session     *Session     `json:"session,omitempty"`
	Participant *Participant `json:"participant,omitempty"`
	Item        *Item        `json:"item,omitempty"`
	Assignment  *Assignment  `json:"assignment,omitempty"`
}

// ItemID returns the item a change touches, if any.
func (c Change) ItemID() string {
	switch c.Entity {
	case EntityItem:
		return c.ID
	case EntityAssignment:
		if c.Assignment != nil {
			return c.Assignment.ItemID
		}
	}
	return ""
}

// Event is one published logical operation.
type Event struct {
	// Seq increases monotonically per hub.
	Seq       int64    `json:"seq"`
	SessionID string   `json:"session_id"`
	Changes   []Change `json:"changes"`

	// ItemAssignments is the authoritative full assignment set, after the
	// operation, of every item whose assignments the operation touched.
	// An empty slice means the item is now unassigned.
	ItemAssignments map[string][]Assignment `json:"item_assignments,omitempty"`
}
