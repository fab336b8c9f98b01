package realtime

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/engine"
	"github.com/mmynk/tabsplit/internal/models"
)

func baseState() *models.SessionState {
	return &models.SessionState{
		Session: models.Session{ID: "s1", OwnerID: "A"},
		Participants: []models.Participant{
			{ID: "A", SessionID: "s1", Name: "Ana", IsOwner: true},
			{ID: "B", SessionID: "s1", Name: "Beto"},
			{ID: "C", SessionID: "s1", Name: "Caro"},
		},
		Items: []models.Item{{
			ID: "pizza", SessionID: "s1", Name: "Pizza", Quantity: 1,
			UnitPrice: decimal.NewFromInt(30000), TotalPrice: decimal.NewFromInt(30000),
		}},
	}
}

func idGen(prefix string) engine.Option {
	n := 0
	return engine.WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	})
}

func recv(t *testing.T, ch <-chan models.Event) models.Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
	return models.Event{}
}

func TestHub_PublishSubscribe(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s1 := hub.Subscribe(ctx, "s1")
	s2 := hub.Subscribe(ctx, "s2")

	first := hub.Publish("s1", []models.Change{{Type: models.ChangeUpdate, Entity: models.EntitySession, ID: "s1"}}, nil)
	second := hub.Publish("s1", nil, nil)
	if second.Seq <= first.Seq {
		t.Errorf("seq not increasing: %d then %d", first.Seq, second.Seq)
	}

	if ev := recv(t, s1); ev.Seq != first.Seq || len(ev.Changes) != 1 {
		t.Errorf("unexpected first event: %+v", ev)
	}
	if ev := recv(t, s1); ev.Seq != second.Seq {
		t.Errorf("unexpected second event: %+v", ev)
	}

	select {
	case ev := <-s2:
		t.Errorf("other session received %+v", ev)
	default:
	}
	if hub.LastSeq("s1") != second.Seq {
		t.Errorf("LastSeq(s1) = %d, want %d", hub.LastSeq("s1"), second.Seq)
	}
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(WithBuffer(1))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := hub.Subscribe(ctx, "s1")
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			hub.Publish("s1", nil, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	if ev := recv(t, ch); ev.Seq != 1 {
		t.Errorf("buffered event seq = %d, want 1", ev.Seq)
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx, "s1")
	if n := hub.Subscribers("s1"); n != 1 {
		t.Fatalf("Subscribers = %d, want 1", n)
	}

	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if n := hub.Subscribers("s1"); n != 0 {
		t.Errorf("Subscribers = %d after cancel, want 0", n)
	}
	// Publishing to a session without subscribers is fine.
	hub.Publish("s1", nil, nil)
}

func TestItemAssignments(t *testing.T) {
	e := engine.New(baseState(), idGen("a"))
	_, _, _ = e.ToggleAssignment("pizza", "A")
	_, changes, err := e.ToggleAssignment("pizza", "B")
	if err != nil {
		t.Fatal(err)
	}

	sets := ItemAssignments(e.State(), changes)
	if len(sets) != 1 || len(sets["pizza"]) != 2 {
		t.Fatalf("sets = %+v, want pizza with 2 assignments", sets)
	}

	changes, err = e.DeleteItem("pizza")
	if err != nil {
		t.Fatal(err)
	}
	sets = ItemAssignments(e.State(), changes)
	if set, ok := sets["pizza"]; !ok || set == nil || len(set) != 0 {
		t.Errorf("deleted item set = %#v, want empty non-nil", set)
	}
}

func TestReplica_LastWriteWinsOnItemSet(t *testing.T) {
	server := engine.New(baseState(), idGen("srv"))
	replica := NewReplica(baseState(), 0)

	// Client optimistically claims the pizza for A.
	client := engine.New(replica.State(), idGen("cli"))
	_, local, err := client.ToggleAssignment("pizza", "A")
	if err != nil {
		t.Fatal(err)
	}
	replica.ApplyLocal(local)
	if !replica.Pending("pizza") {
		t.Fatal("expected pizza pending after local toggle")
	}

	// Meanwhile the server saw B claim first, then A.
	_, _, _ = server.ToggleAssignment("pizza", "B")
	_, changes, _ := server.ToggleAssignment("pizza", "A")
	ev := models.Event{Seq: 7, SessionID: "s1", Changes: changes, ItemAssignments: ItemAssignments(server.State(), changes)}

	if !replica.ApplyRemote(ev) {
		t.Fatal("expected event to apply")
	}
	if replica.Pending("pizza") {
		t.Error("pizza still pending after authoritative event")
	}

	got := replica.State().AssignmentsFor("pizza")
	want := server.State().AssignmentsFor("pizza")
	if len(got) != len(want) {
		t.Fatalf("replica has %d assignments, server %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("assignment %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if err := engine.CheckInvariants(replica.State()); err != nil {
		t.Errorf("replica state invalid: %v", err)
	}

	// An older event for the same item is ignored.
	stale := models.Event{Seq: 3, SessionID: "s1", ItemAssignments: map[string][]models.Assignment{"pizza": {}}}
	if replica.ApplyRemote(stale) {
		t.Error("stale event reported as applied")
	}
	if n := len(replica.State().AssignmentsFor("pizza")); n != 2 {
		t.Errorf("stale event changed assignments: %d", n)
	}
}

func TestReplica_RederivesWithoutAuthoritativeSet(t *testing.T) {
	state := baseState()
	state.Assignments = []models.Assignment{
		{ID: "x1", ItemID: "pizza", ParticipantID: "A", ShareFraction: 0.5},
		{ID: "x2", ItemID: "pizza", ParticipantID: "B", ShareFraction: 0.5},
	}
	replica := NewReplica(state, 0)

	// A racing client computed C's fraction from a stale count of one holder.
	ev := models.Event{Seq: 1, SessionID: "s1", Changes: []models.Change{{
		Type: models.ChangeInsert, Entity: models.EntityAssignment, ID: "x3", SessionID: "s1",
		Assignment: &models.Assignment{ID: "x3", ItemID: "pizza", ParticipantID: "C", ShareFraction: 0.5},
	}}}
	replica.ApplyRemote(ev)

	set := replica.State().AssignmentsFor("pizza")
	if len(set) != 3 {
		t.Fatalf("got %d assignments, want 3", len(set))
	}
	for _, a := range set {
		if math.Abs(a.ShareFraction-1.0/3) > 1e-12 {
			t.Errorf("%s fraction = %v, want 1/3", a.ParticipantID, a.ShareFraction)
		}
	}
}

func TestReplica_ParticipantDeleteCascades(t *testing.T) {
	server := engine.New(baseState(), idGen("srv"))
	_, _, _ = server.ToggleAssignment("pizza", "B")
	_, _, _ = server.ToggleAssignment("pizza", "C")
	replica := NewReplica(server.State(), 2)

	changes, err := server.RemoveParticipant("B")
	if err != nil {
		t.Fatal(err)
	}
	replica.ApplyRemote(models.Event{Seq: 3, SessionID: "s1", Changes: changes, ItemAssignments: ItemAssignments(server.State(), changes)})

	got := replica.State()
	if _, ok := got.Participant("B"); ok {
		t.Error("participant B still in replica")
	}
	set := got.AssignmentsFor("pizza")
	if len(set) != 1 || set[0].ParticipantID != "C" || set[0].ShareFraction != 1 {
		t.Errorf("pizza assignments = %+v, want C:1", set)
	}
}

func TestReplica_ResyncDiscardsPendingAndFloorsVersions(t *testing.T) {
	replica := NewReplica(baseState(), 0)
	client := engine.New(replica.State(), idGen("cli"))
	_, local, _ := client.ToggleAssignment("pizza", "A")
	replica.ApplyLocal(local)

	replica.Resync(baseState(), 10)
	if replica.Pending("pizza") {
		t.Error("pending survived resync")
	}
	if n := len(replica.State().Assignments); n != 0 {
		t.Errorf("resync kept %d local assignments", n)
	}

	old := models.Event{Seq: 9, SessionID: "s1", Changes: local, ItemAssignments: map[string][]models.Assignment{"pizza": {*local[0].Assignment}}}
	if replica.ApplyRemote(old) {
		t.Error("event older than the snapshot was applied")
	}
}

func TestHub_LastSeqIsPerSession(t *testing.T) {
	hub := NewHub()
	if got := hub.LastSeq("s1"); got != 0 {
		t.Fatalf("LastSeq before any publish = %d, want 0", got)
	}

	ev := hub.Publish("s1", nil, nil)
	hub.Publish("s2", nil, nil)
	other := hub.Publish("s2", nil, nil)

	if got := hub.LastSeq("s1"); got != ev.Seq {
		t.Errorf("LastSeq(s1) = %d, want %d", got, ev.Seq)
	}
	if other.Seq <= ev.Seq {
		t.Errorf("seq not hub-wide: s2 got %d after s1 got %d", other.Seq, ev.Seq)
	}
	if got := hub.LastSeq("s2"); got != other.Seq {
		t.Errorf("LastSeq(s2) = %d, want %d", got, other.Seq)
	}
}
