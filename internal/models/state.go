package models

// SessionState is the complete live state of one session.
type SessionState struct {
	Session      Session       `json:"session"`
	Participants []Participant `json:"participants"`
	Items        []Item        `json:"items"`
	Assignments  []Assignment  `json:"assignments"`
}

// Clone returns a deep copy so callers can mutate it freely.
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	out := &SessionState{
		Session:      s.Session,
		Participants: append([]Participant(nil), s.Participants...),
		Items:        make([]Item, len(s.Items)),
		Assignments:  append([]Assignment(nil), s.Assignments...),
	}
	for i, item := range s.Items {
		if item.OCRConfidence != nil {
			c := *item.OCRConfidence
			item.OCRConfidence = &c
		}
		out.Items[i] = item
	}
	return out
}

// AssignmentsFor returns the assignments of one item in state order.
func (s *SessionState) AssignmentsFor(itemID string) []Assignment {
	var out []Assignment
	for _, a := range s.Assignments {
		if a.ItemID == itemID {
			out = append(out, a)
		}
	}
	return out
}

// Participant looks a participant up by ID.
func (s *SessionState) Participant(id string) (Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return Participant{}, false
}

// Item looks an item up by ID.
func (s *SessionState) Item(id string) (Item, bool) {
	for _, it := range s.Items {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
