package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/mmynk/tabsplit/internal/engine"
	"github.com/mmynk/tabsplit/internal/models"
	"github.com/mmynk/tabsplit/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

// newSession creates a session through the engine and persists it.
func newSession(t *testing.T, store *SQLiteStore, code string) *engine.Engine {
	t.Helper()
	e, _, err := engine.NewSession(code, "Ana")
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}
	if err := store.CreateSession(context.Background(), e.State()); err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return e
}

func assertStatesEqual(t *testing.T, want, got *models.SessionState) {
	t.Helper()
	if got.Session.ID != want.Session.ID || got.Session.Code != want.Session.Code ||
		!got.Session.TipPercentage.Equal(want.Session.TipPercentage) || !got.Session.TaxAmount.Equal(want.Session.TaxAmount) {
		t.Errorf("session = %+v, want %+v", got.Session, want.Session)
	}
	if len(got.Participants) != len(want.Participants) {
		t.Fatalf("participants = %d, want %d", len(got.Participants), len(want.Participants))
	}
	for i := range want.Participants {
		if got.Participants[i] != want.Participants[i] {
			t.Errorf("participant %d = %+v, want %+v", i, got.Participants[i], want.Participants[i])
		}
	}
	if len(got.Items) != len(want.Items) {
		t.Fatalf("items = %d, want %d", len(got.Items), len(want.Items))
	}
	for i := range want.Items {
		g, w := got.Items[i], want.Items[i]
		if g.ID != w.ID || g.Name != w.Name || g.Quantity != w.Quantity || !g.TotalPrice.Equal(w.TotalPrice) ||
			g.OrderIndex != w.OrderIndex || g.IsShared != w.IsShared || g.ManuallyAdded != w.ManuallyAdded {
			t.Errorf("item %d = %+v, want %+v", i, g, w)
		}
		if (g.OCRConfidence == nil) != (w.OCRConfidence == nil) || (g.OCRConfidence != nil && *g.OCRConfidence != *w.OCRConfidence) {
			t.Errorf("item %d confidence = %v, want %v", i, g.OCRConfidence, w.OCRConfidence)
		}
	}
	if len(got.Assignments) != len(want.Assignments) {
		t.Fatalf("assignments = %d, want %d", len(got.Assignments), len(want.Assignments))
	}
	for i := range want.Assignments {
		if got.Assignments[i] != want.Assignments[i] {
			t.Errorf("assignment %d = %+v, want %+v", i, got.Assignments[i], want.Assignments[i])
		}
	}
}

func TestSQLiteStore_Sessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := newSession(t, store, "A3B7K9")
	state := e.State()

	t.Run("GetSession and GetSessionByCode", func(t *testing.T) {
		byID, err := store.GetSession(ctx, state.Session.ID)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		byCode, err := store.GetSessionByCode(ctx, "A3B7K9")
		if err != nil {
			t.Fatalf("GetSessionByCode failed: %v", err)
		}
		if byID.ID != byCode.ID || byID.OwnerID != state.Session.OwnerID {
			t.Errorf("sessions differ: %+v vs %+v", byID, byCode)
		}
	})

	t.Run("missing session is ErrNotFound", func(t *testing.T) {
		if _, err := store.GetSession(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetSession error = %v, want ErrNotFound", err)
		}
		if _, err := store.GetSessionByCode(ctx, "ZZZZZZ"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetSessionByCode error = %v, want ErrNotFound", err)
		}
		if _, err := store.LoadState(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("LoadState error = %v, want ErrNotFound", err)
		}
	})

	t.Run("duplicate code is ErrConflict", func(t *testing.T) {
		other, _, err := engine.NewSession("A3B7K9", "Beto")
		if err != nil {
			t.Fatal(err)
		}
		if err := store.CreateSession(ctx, other.State()); !errors.Is(err, storage.ErrConflict) {
			t.Errorf("CreateSession error = %v, want ErrConflict", err)
		}
	})
}

func TestSQLiteStore_ApplyRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := newSession(t, store, "PQR234")

	apply := func(changes []models.Change, err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("engine mutation failed: %v", err)
		}
		if err := store.Apply(ctx, changes); err != nil {
			t.Fatalf("Apply failed: %v", err)
		}
	}

	b, changes, err := e.AddParticipant("Beto")
	apply(changes, err)
	c, changes, err := e.AddParticipant("Caro")
	apply(changes, err)

	confidence := 0.92
	items, changes, err := e.AddItems([]engine.ItemInput{
		{Name: "Pizza Margarita", Quantity: 1, UnitPrice: decimal.NewFromInt(42000), OCRConfidence: &confidence},
		{Name: "Coca Cola", Quantity: 3, UnitPrice: decimal.NewFromInt(6000)},
	})
	apply(changes, err)

	owner := e.State().Session.OwnerID
	for _, p := range []string{owner, b.ID, c.ID} {
		_, changes, err := e.ToggleAssignment(items[0].ID, p)
		apply(changes, err)
	}
	_, changes, err = e.ToggleAssignment(items[1].ID, b.ID)
	apply(changes, err)

	tip := decimal.NewFromInt(10)
	changes, err = e.UpdateSettings(&tip, nil)
	apply(changes, err)

	qty := 4
	_, changes, err = e.EditItem(items[1].ID, engine.ItemPatch{Quantity: &qty})
	apply(changes, err)

	loaded, err := store.LoadState(ctx, e.State().Session.ID)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	assertStatesEqual(t, e.State(), loaded)

	// Removing a participant renormalizes and cascades.
	changes, err = e.RemoveParticipant(b.ID)
	apply(changes, err)
	changes, err = e.DeleteItem(items[1].ID)
	apply(changes, err)

	loaded, err = store.LoadState(ctx, e.State().Session.ID)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	assertStatesEqual(t, e.State(), loaded)
	if err := engine.CheckInvariants(loaded); err != nil {
		t.Errorf("loaded state violates invariants: %v", err)
	}
}

func TestSQLiteStore_ApplyIsAtomic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := newSession(t, store, "XYZ789")

	item, changes, err := e.AddItem(engine.ItemInput{Name: "Arepa", Quantity: 1, UnitPrice: decimal.NewFromInt(7000)})
	if err != nil {
		t.Fatal(err)
	}
	missing := models.Item{ID: "missing", Quantity: 1, UnitPrice: decimal.Zero, TotalPrice: decimal.Zero}
	changes = append(changes, models.Change{Type: models.ChangeUpdate, Entity: models.EntityItem, ID: "missing", Item: &missing})

	err = store.Apply(ctx, changes)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Apply error = %v, want ErrNotFound", err)
	}

	loaded, err := store.LoadState(ctx, e.State().Session.ID)
	if err != nil {
		t.Fatalf("LoadState failed: %v", err)
	}
	for _, it := range loaded.Items {
		if it.ID == item.ID {
			t.Error("insert from failed batch was committed")
		}
	}
}

func TestSQLiteStore_DuplicateAssignmentRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	e := newSession(t, store, "HJK456")

	item, changes, err := e.AddItem(engine.ItemInput{Name: "Jugo", Quantity: 1, UnitPrice: decimal.NewFromInt(5000)})
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Apply(ctx, changes); err != nil {
		t.Fatal(err)
	}

	owner := e.State().Session.OwnerID
	dup := func(id string) models.Change {
		a := models.Assignment{ID: id, ItemID: item.ID, ParticipantID: owner, ShareFraction: 1}
		return models.Change{Type: models.ChangeInsert, Entity: models.EntityAssignment, ID: id, Assignment: &a}
	}
	err = store.Apply(ctx, []models.Change{dup("a1"), dup("a2")})
	if !errors.Is(err, storage.ErrConflict) {
		t.Errorf("Apply error = %v, want ErrConflict", err)
	}
}
