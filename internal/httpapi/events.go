package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/voxedit/voxedit/internal/observability"
)

// Event is one progress notification on a session's stream: pipeline
// stage completions, applied edits, and history navigation.
type Event struct {
	Type      string    `json:"type"`
	SessionID string    `json:"session_id"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type subscriber struct {
	ch   chan Event
	once sync.Once
}

// EventHub fans session events out to websocket subscribers. Slow
// subscribers drop events rather than block the pipeline.
type EventHub struct {
	mu      sync.RWMutex
	subs    map[string]map[*subscriber]struct{}
	metrics *observability.Metrics
}

func NewEventHub(metrics *observability.Metrics) *EventHub {
	return &EventHub{
		subs:    make(map[string]map[*subscriber]struct{}),
		metrics: metrics,
	}
}

// Subscribe registers a listener for one session. The returned cancel
// function closes the channel; calling it more than once is safe.
func (h *EventHub) Subscribe(sessionID string) (<-chan Event, func()) {
	sub := &subscriber{ch: make(chan Event, 64)}

	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*subscriber]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() { h.unsubscribe(sessionID, sub) }
	return sub.ch, cancel
}

func (h *EventHub) unsubscribe(sessionID string, sub *subscriber) {
	sub.once.Do(func() {
		h.mu.Lock()
		if set, ok := h.subs[sessionID]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(h.subs, sessionID)
			}
		}
		h.mu.Unlock()
		close(sub.ch)
	})
}

// Publish delivers an event to every subscriber of the session.
func (h *EventHub) Publish(sessionID string, ev Event) {
	ev.SessionID = sessionID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- ev:
			h.count("outbound", ev.Type)
		default:
			// Keep websocket writes single-threaded per subscriber; drop
			// when the buffer is saturated.
			h.count("dropped", ev.Type)
		}
	}
}

// PublishStage adapts the pipeline's stage callback onto the hub.
func (h *EventHub) PublishStage(sessionID, stage string) {
	h.Publish(sessionID, Event{Type: "stage", Detail: stage})
}

// CloseSession drops every subscriber of a removed session.
func (h *EventHub) CloseSession(sessionID string) {
	h.mu.RLock()
	set := h.subs[sessionID]
	subs := make([]*subscriber, 0, len(set))
	for sub := range set {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		h.unsubscribe(sessionID, sub)
	}
}

func (h *EventHub) count(direction, typ string) {
	if h.metrics != nil {
		h.metrics.WSMessages.WithLabelValues(direction, typ).Inc()
	}
}

// handleSessionEvents upgrades to a websocket and streams session
// events until the client disconnects or the session is removed.
func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	st, ok := s.session(w, r)
	if !ok {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	events, cancel := s.events.Subscribe(st.SessionID())
	defer cancel()

	done := make(chan struct{})

	go func() {
		defer close(done)
		for ev := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}()

	conn.SetReadLimit(1 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

	// The stream is one-way; the read loop only detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	}

	cancel()
	<-done
}
