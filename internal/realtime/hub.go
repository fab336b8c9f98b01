// Package realtime fans session change events out to subscribers and
// reconciles optimistic client state against them.
package realtime

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mmynk/tabsplit/internal/models"
)

// DefaultBuffer is the per-subscriber event buffer.
const DefaultBuffer = 64

var (
	eventsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabsplit_realtime_events_published_total",
		Help: "Change events published to session subscribers.",
	})
	eventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tabsplit_realtime_events_dropped_total",
		Help: "Change events dropped because a subscriber buffer was full.",
	})
	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tabsplit_realtime_subscribers",
		Help: "Currently connected session subscribers.",
	})
)

// Hub delivers events to the subscribers of each session.
type Hub struct {
	mu     sync.Mutex
	seq    int64
	last   map[string]int64
	rooms  map[string]*room
	buffer int
	logger *slog.Logger
}

type room struct {
	subscribers map[*subscriber]struct{}
}

type subscriber struct {
	ch chan models.Event
}

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithBuffer sets the per-subscriber buffer size.
func WithBuffer(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithHubLogger sets the logger used for dropped events.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) { h.logger = logger }
}

// NewHub creates an empty hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		last:   make(map[string]int64),
		rooms:  make(map[string]*room),
		buffer: DefaultBuffer,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Subscribe registers for the events of one session. The returned channel
// is closed once ctx is done.
func (h *Hub) Subscribe(ctx context.Context, sessionID string) <-chan models.Event {
	sub := &subscriber{ch: make(chan models.Event, h.buffer)}

	h.mu.Lock()
	r, ok := h.rooms[sessionID]
	if !ok {
		r = &room{subscribers: make(map[*subscriber]struct{})}
		h.rooms[sessionID] = r
	}
	r.subscribers[sub] = struct{}{}
	h.mu.Unlock()
	subscribersGauge.Inc()

	go func() {
		<-ctx.Done()
		h.unsubscribe(sessionID, sub)
	}()
	return sub.ch
}

func (h *Hub) unsubscribe(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	if _, ok := r.subscribers[sub]; !ok {
		return
	}
	delete(r.subscribers, sub)
	close(sub.ch)
	subscribersGauge.Dec()
	if len(r.subscribers) == 0 {
		delete(h.rooms, sessionID)
	}
}

// Publish assigns the next sequence number to a logical operation and
// delivers it to every subscriber of the session. Delivery never blocks: a
// subscriber whose buffer is full misses the event and must resync.
func (h *Hub) Publish(sessionID string, changes []models.Change, itemAssignments map[string][]models.Assignment) models.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	event := models.Event{
		Seq:             h.seq,
		SessionID:       sessionID,
		Changes:         changes,
		ItemAssignments: itemAssignments,
	}
	h.last[sessionID] = h.seq
	eventsPublished.Inc()

	r, ok := h.rooms[sessionID]
	if !ok {
		return event
	}
	for sub := range r.subscribers {
		select {
		case sub.ch <- event:
		default:
			eventsDropped.Inc()
			h.logger.Warn("Dropping event for slow subscriber",
				"session_id", sessionID,
				"seq", event.Seq,
			)
		}
	}
	return event
}

// LastSeq returns the sequence number of the last event published for one
// session, or 0 if there was none. Other sessions' events do not move it.
func (h *Hub) LastSeq(sessionID string) int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last[sessionID]
}

// Subscribers returns the number of subscribers of a session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[sessionID]; ok {
		return len(r.subscribers)
	}
	return 0
}

// ItemAssignments collects, from the state after an operation, the full
// assignment set of every item the changes touched. Deleted items map to an
// empty set.
func ItemAssignments(state *models.SessionState, changes []models.Change) map[string][]models.Assignment {
	var sets map[string][]models.Assignment
	for _, c := range changes {
		itemID := c.ItemID()
		if itemID == "" {
			continue
		}
		if sets == nil {
			sets = make(map[string][]models.Assignment)
		}
		if _, ok := sets[itemID]; ok {
			continue
		}
		set := state.AssignmentsFor(itemID)
		if set == nil {
			set = []models.Assignment{}
		}
		sets[itemID] = set
	}
	return sets
}
