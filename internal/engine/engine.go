// Package engine implements the item store and the assignment engine.
//
// An Engine owns one models.SessionState. Every mutation runs against a
// private copy of that state, is checked against the engine invariants, and
// is committed only if they hold, so callers never observe a partially
// renormalized item. Each mutation returns the ordered []models.Change that
// a store must apply to reach the same state.
//
// Invariants checked after every mutation:
//   - for each item with assignments, share fractions sum to 1 (±1e-9)
//   - every share fraction is in (0, 1]
//   - at most one assignment per (item, participant)
//   - assignments reference live items and participants
//   - item total = quantity × unit price
package engine

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/tabsplit/internal/models"
)

// Engine applies state transitions to one session.
type Engine struct {
	mu          sync.Mutex
	state       *models.SessionState
	newID       func() string
	now         func() time.Time
	logger      *slog.Logger
	onViolation func(op string, err error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithIDGenerator overrides UUID generation (useful in tests).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) Option {
	return func(e *Engine) { e.now = fn }
}

// WithLogger sets the logger used for invariant violations.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithViolationHook is called after an invariant violation is logged.
func WithViolationHook(fn func(op string, err error)) Option {
	return func(e *Engine) { e.onViolation = fn }
}

// New creates an engine over a copy of state. Items are ordered by
// OrderIndex, ties keeping their given order.
func New(state *models.SessionState, opts ...Option) *Engine {
	if state == nil {
		state = &models.SessionState{}
	}
	e := &Engine{
		state:  state.Clone(),
		newID:  func() string { return uuid.New().String() },
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	sort.SliceStable(e.state.Items, func(i, j int) bool {
		return e.state.Items[i].OrderIndex < e.state.Items[j].OrderIndex
	})
	return e
}

// State returns a copy of the current state.
func (e *Engine) State() *models.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// mutate runs fn against a working copy and commits it only if the
// invariants hold afterwards.
func (e *Engine) mutate(op string, fn func(w *working) error) ([]models.Change, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	w := &working{state: e.state.Clone()}
	if err := fn(w); err != nil {
		return nil, err
	}

	if err := checkInvariants(w.state); err != nil {
		e.logger.Error("Engine invariant violation",
			"op", op,
			"session_id", e.state.Session.ID,
			"error", err,
		)
		if e.onViolation != nil {
			e.onViolation(op, err)
		}
		return nil, err
	}

	e.state = w.state
	return w.changes, nil
}

// working is the uncommitted copy a mutation operates on, plus the changes
// it has emitted so far.
type working struct {
	state   *models.SessionState
	changes []models.Change
}

func (w *working) emit(c models.Change) {
	c.SessionID = w.state.Session.ID
	w.changes = append(w.changes, c)
}

func (w *working) itemIndex(id string) int {
	for i := range w.state.Items {
		if w.state.Items[i].ID == id {
			return i
		}
	}
	return -1
}

func (w *working) participantIndex(id string) int {
	for i := range w.state.Participants {
		if w.state.Participants[i].ID == id {
			return i
		}
	}
	return -1
}

func (w *working) assignmentIndex(itemID, participantID string) int {
	for i, a := range w.state.Assignments {
		if a.ItemID == itemID && a.ParticipantID == participantID {
			return i
		}
	}
	return -1
}

func (w *working) countAssignments(itemID string) int {
	n := 0
	for _, a := range w.state.Assignments {
		if a.ItemID == itemID {
			n++
		}
	}
	return n
}

func (w *working) updateItem(i int) {
	item := w.state.Items[i]
	w.emit(models.Change{Type: models.ChangeUpdate, Entity: models.EntityItem, ID: item.ID, Item: &item})
}

func (w *working) updateSession() {
	session := w.state.Session
	w.emit(models.Change{Type: models.ChangeUpdate, Entity: models.EntitySession, ID: session.ID, Session: &session})
}
