package service

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/tabsplit/internal/apperrors"
	"github.com/mmynk/tabsplit/internal/calculator"
	"github.com/mmynk/tabsplit/internal/engine"
	"github.com/mmynk/tabsplit/internal/models"
)

// GetSession returns the session state and its settlement. Reads need no
// token.
func (s *SessionService) GetSession(ctx context.Context, req *connect.Request[GetSessionRequest]) (*connect.Response[GetSessionResponse], error) {
	state, seq, err := s.snapshot(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}
	return connect.NewResponse(&GetSessionResponse{
		State:      state,
		Settlement: calculator.Settle(state),
		Seq:        seq,
	}), nil
}

// AddParticipant adds a participant by name, e.g. a diner without a phone.
func (s *SessionService) AddParticipant(ctx context.Context, req *connect.Request[AddParticipantRequest]) (*connect.Response[AddParticipantResponse], error) {
	claims, err := requireMember(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	var added models.Participant
	m, err := s.mutate(ctx, req.Msg.SessionID, "add_participant", claims, func(e *engine.Engine) ([]models.Change, error) {
		p, changes, err := e.AddParticipant(req.Msg.Name)
		added = p
		return changes, err
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	slog.Info("Participant added",
		"session_id", req.Msg.SessionID,
		"participant_id", added.ID,
		"by", claims.ParticipantID,
	)
	return connect.NewResponse(&AddParticipantResponse{Participant: added, Seq: m.event.Seq}), nil
}

// RemoveParticipant drops a participant and renormalizes the items they
// held. Owner only.
func (s *SessionService) RemoveParticipant(ctx context.Context, req *connect.Request[RemoveParticipantRequest]) (*connect.Response[MutationResponse], error) {
	claims, err := requireOwner(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	m, err := s.mutate(ctx, req.Msg.SessionID, "remove_participant", claims, func(e *engine.Engine) ([]models.Change, error) {
		return e.RemoveParticipant(req.Msg.ParticipantID)
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	slog.Info("Participant removed",
		"session_id", req.Msg.SessionID,
		"participant_id", req.Msg.ParticipantID,
		"changes", len(m.changes),
	)
	return connect.NewResponse(&MutationResponse{Changes: m.changes, Seq: m.event.Seq}), nil
}

// UpdateSettings changes tip and tax. Owner only.
func (s *SessionService) UpdateSettings(ctx context.Context, req *connect.Request[UpdateSettingsRequest]) (*connect.Response[UpdateSettingsResponse], error) {
	claims, err := requireOwner(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	m, err := s.mutate(ctx, req.Msg.SessionID, "update_settings", claims, func(e *engine.Engine) ([]models.Change, error) {
		return e.UpdateSettings(req.Msg.TipPercentage, req.Msg.TaxAmount)
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	slog.Info("Settings updated",
		"session_id", req.Msg.SessionID,
		"tip_percentage", m.state.Session.TipPercentage.String(),
		"tax_amount", m.state.Session.TaxAmount.String(),
	)
	return connect.NewResponse(&UpdateSettingsResponse{Session: m.state.Session, Seq: m.event.Seq}), nil
}

// AddItem appends a manually entered item.
func (s *SessionService) AddItem(ctx context.Context, req *connect.Request[AddItemRequest]) (*connect.Response[ItemResponse], error) {
	claims, err := requireMember(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	var added models.Item
	m, err := s.mutate(ctx, req.Msg.SessionID, "add_item", claims, func(e *engine.Engine) ([]models.Change, error) {
		item, changes, err := e.AddItem(engine.ItemInput{
			Name:          req.Msg.Name,
			Quantity:      req.Msg.Quantity,
			UnitPrice:     req.Msg.UnitPrice,
			ManuallyAdded: true,
		})
		added = item
		return changes, err
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	slog.Info("Item added",
		"session_id", req.Msg.SessionID,
		"item_id", added.ID,
		"total_price", added.TotalPrice.String(),
	)
	return connect.NewResponse(&ItemResponse{Item: added, Seq: m.event.Seq}), nil
}

// EditItem changes an item's name, quantity or unit price. Omitted fields
// keep their value.
func (s *SessionService) EditItem(ctx context.Context, req *connect.Request[EditItemRequest]) (*connect.Response[ItemResponse], error) {
	claims, err := requireMember(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	var edited models.Item
	m, err := s.mutate(ctx, req.Msg.SessionID, "edit_item", claims, func(e *engine.Engine) ([]models.Change, error) {
		item, changes, err := e.EditItem(req.Msg.ItemID, engine.ItemPatch{
			Name:      req.Msg.Name,
			Quantity:  req.Msg.Quantity,
			UnitPrice: req.Msg.UnitPrice,
		})
		edited = item
		return changes, err
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}
	return connect.NewResponse(&ItemResponse{Item: edited, Seq: m.event.Seq}), nil
}

// DeleteItem removes an item and its assignments.
func (s *SessionService) DeleteItem(ctx context.Context, req *connect.Request[DeleteItemRequest]) (*connect.Response[MutationResponse], error) {
	claims, err := requireMember(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	m, err := s.mutate(ctx, req.Msg.SessionID, "delete_item", claims, func(e *engine.Engine) ([]models.Change, error) {
		return e.DeleteItem(req.Msg.ItemID)
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	slog.Info("Item deleted", "session_id", req.Msg.SessionID, "item_id", req.Msg.ItemID)
	return connect.NewResponse(&MutationResponse{Changes: m.changes, Seq: m.event.Seq}), nil
}

// ToggleAssignment claims or releases an item for a participant, the caller
// by default.
func (s *SessionService) ToggleAssignment(ctx context.Context, req *connect.Request[ToggleAssignmentRequest]) (*connect.Response[ToggleAssignmentResponse], error) {
	claims, err := requireMember(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}
	participantID := req.Msg.ParticipantID
	if participantID == "" {
		participantID = claims.ParticipantID
	}

	var assigned bool
	m, err := s.mutate(ctx, req.Msg.SessionID, "toggle_assignment", claims, func(e *engine.Engine) ([]models.Change, error) {
		ok, changes, err := e.ToggleAssignment(req.Msg.ItemID, participantID)
		assigned = ok
		return changes, err
	})
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	item, _ := m.state.Item(req.Msg.ItemID)
	assignments := m.state.AssignmentsFor(req.Msg.ItemID)
	if assignments == nil {
		assignments = []models.Assignment{}
	}
	slog.Debug("Assignment toggled",
		"session_id", req.Msg.SessionID,
		"item_id", req.Msg.ItemID,
		"participant_id", participantID,
		"assigned", assigned,
		"holders", len(assignments),
	)
	return connect.NewResponse(&ToggleAssignmentResponse{
		Assigned:    assigned,
		Item:        item,
		Assignments: assignments,
		Seq:         m.event.Seq,
	}), nil
}

// GetSettlement returns the bill breakdown, what everyone owes the payer and
// a shareable text summary.
func (s *SessionService) GetSettlement(ctx context.Context, req *connect.Request[GetSettlementRequest]) (*connect.Response[GetSettlementResponse], error) {
	state, _, err := s.snapshot(ctx, req.Msg.SessionID)
	if err != nil {
		return nil, apperrors.ToConnect(err)
	}

	payerID := req.Msg.PayerID
	if payerID == "" {
		payerID = state.Session.OwnerID
	}
	if _, ok := state.Participant(payerID); !ok {
		return nil, apperrors.ToConnect(apperrors.NotFound("participant", payerID))
	}

	settlement := calculator.Settle(state)
	transfers := calculator.Transfers(settlement, payerID)
	if transfers == nil {
		transfers = []calculator.Transfer{}
	}
	return connect.NewResponse(&GetSettlementResponse{
		Settlement: settlement,
		Transfers:  transfers,
		Summary:    calculator.Summary(state, settlement),
	}), nil
}

// Subscribe streams the events of a session. The first message is a marker
// with no changes whose Seq is the session's last event published before the
// subscription started; clients holding an older snapshot should resync.
// Events of other sessions never move the marker.
func (s *SessionService) Subscribe(ctx context.Context, req *connect.Request[SubscribeRequest], stream *connect.ServerStream[models.Event]) error {
	sessionID := req.Msg.SessionID
	if _, err := s.loadState(ctx, sessionID); err != nil {
		return apperrors.ToConnect(err)
	}

	events := s.hub.Subscribe(ctx, sessionID)
	if err := stream.Send(&models.Event{Seq: s.hub.LastSeq(sessionID), SessionID: sessionID}); err != nil {
		return err
	}
	slog.Info("Subscriber attached", "session_id", sessionID)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.Send(&event); err != nil {
				slog.Warn("Failed to send event", "session_id", sessionID, "seq", event.Seq, "error", err)
				return err
			}
		}
	}
}
