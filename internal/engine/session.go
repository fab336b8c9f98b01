package engine

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/money"
)

// maxNameLength bounds participant display names.
const maxNameLength = 40

// NewSession starts a session with its owner as the first participant. The
// returned changes insert the session and then the owner.
func NewSession(code, ownerName string, opts ...Option) (*Engine, []models.Change, error) {
	e := New(nil, opts...)
	name, err := validateName(ownerName)
	if err != nil {
		return nil, nil, err
	}

	changes, err := e.mutate("new_session", func(w *working) error {
		now := e.now().Unix()
		owner := models.Participant{
			ID:       e.newID(),
			Name:     name,
			Color:    models.ColorByIndex(0),
			IsOwner:  true,
			JoinedAt: now,
		}
		w.state.Session = models.Session{
			ID:            e.newID(),
			Code:          code,
			TipPercentage: decimal.Zero,
			TaxAmount:     decimal.Zero,
			OwnerID:       owner.ID,
			CreatedAt:     now,
		}
		owner.SessionID = w.state.Session.ID
		w.state.Participants = []models.Participant{owner}

		session := w.state.Session
		w.emit(models.Change{Type: models.ChangeInsert, Entity: models.EntitySession, ID: session.ID, Session: &session})
		w.emit(models.Change{Type: models.ChangeInsert, Entity: models.EntityParticipant, ID: owner.ID, Participant: &owner})
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return e, changes, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.Validation("name", "cannot be empty")
	}
	if len([]rune(name)) > maxNameLength {
		return "", apperrors.Validation("name", "is too long")
	}
	return name, nil
}

// AddParticipant joins a new, non-owner participant to the session. Colors
// are assigned round-robin from the palette.
func (e *Engine) AddParticipant(name string) (models.Participant, []models.Change, error) {
	name, err := validateName(name)
	if err != nil {
		return models.Participant{}, nil, err
	}

	var added models.Participant
	changes, err := e.mutate("add_participant", func(w *working) error {
		p := models.Participant{
			ID:        e.newID(),
			SessionID: w.state.Session.ID,
			Name:      name,
			Color:     models.ColorByIndex(len(w.state.Participants)),
			JoinedAt:  e.now().Unix(),
		}
		w.state.Participants = append(w.state.Participants, p)
		w.emit(models.Change{Type: models.ChangeInsert, Entity: models.EntityParticipant, ID: p.ID, Participant: &p})
		added = p
		return nil
	})
	if err != nil {
		return models.Participant{}, nil, err
	}
	return added, changes, nil
}

// UpdateSettings changes the tip percentage and/or the tax amount. Both are
// validated before the session is touched.
func (e *Engine) UpdateSettings(tipPercentage, taxAmount *decimal.Decimal) ([]models.Change, error) {
	if tipPercentage == nil && taxAmount == nil {
		return nil, apperrors.Validation("settings", "nothing to update")
	}
	if tipPercentage != nil {
		if err := money.ValidateTipPercentage(*tipPercentage); err != nil {
			return nil, err
		}
	}
	if taxAmount != nil {
		if err := money.ValidateTax(*taxAmount); err != nil {
			return nil, err
		}
	}

	return e.mutate("update_settings", func(w *working) error {
		if tipPercentage != nil {
			w.state.Session.TipPercentage = *tipPercentage
		}
		if taxAmount != nil {
			w.state.Session.TaxAmount = *taxAmount
		}
		w.updateSession()
		return nil
	})
}
