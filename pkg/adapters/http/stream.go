package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/ddt-tool/ddt/internal/logging"
	"github.com/ddt-tool/ddt/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// Event is pushed to subscribers of a case after every accepted transition.
type Event struct {
	CaseID string            `json:"caseId"`
	Op     string            `json:"op"`
	PackID string            `json:"packId"`
	NodeID string            `json:"nodeId"`
	Diff   *domain.StateDiff `json:"diff,omitempty"`
}

// StreamManager fans case events out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{} // case id -> channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan Event]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a buffered channel for caseID. The returned func
// unregisters and closes it.
func (sm *StreamManager) Subscribe(caseID string) (<-chan Event, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Event, 10)
	if _, ok := sm.subscribers[caseID]; !ok {
		sm.subscribers[caseID] = make(map[chan Event]struct{})
	}
	sm.subscribers[caseID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[caseID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, caseID)
				}
			}
		})
	}
}

// Subscribers returns the number of open subscriptions for caseID.
func (sm *StreamManager) Subscribers(caseID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[caseID])
}

// Broadcast delivers ev to every subscriber of its case. Slow subscribers drop events.
func (sm *StreamManager) Broadcast(ev Event) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[ev.CaseID] {
		select {
		case ch <- ev:
		default:
			sm.logger.Warn("sse client buffer full, dropping event", "case_id", ev.CaseID)
		}
	}
}

// keep reports whether ev passes the comma separated watch filter
// (added, changed, removed). An empty filter keeps everything.
func keep(ev Event, watch string) bool {
	if watch == "" {
		return true
	}
	if ev.Diff == nil {
		return false
	}
	for _, field := range strings.Split(watch, ",") {
		switch strings.TrimSpace(field) {
		case "added":
			if len(ev.Diff.Added) > 0 {
				return true
			}
		case "changed":
			if len(ev.Diff.Changed) > 0 {
				return true
			}
		case "removed":
			if len(ev.Diff.Removed) > 0 {
				return true
			}
		}
	}
	return false
}

func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, r, errStreamingUnsupported)
		return
	}
	caseID := chi.URLParam(r, "caseID")
	if _, err := s.sessions.Export(r.Context(), caseID); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(caseID)
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("sse subscribed", "case_id", caseID)

	watch := r.URL.Query().Get("watch")
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("sse client disconnected", "case_id", caseID)
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if !keep(ev, watch) {
				continue
			}
			data, err := json.Marshal(ev)
			if err != nil {
				s.logger.Error("failed to encode event", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Op, data)
			flusher.Flush()
		}
	}
}
