package web

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"strconv"
	"time"
)

// DefaultHistoryLimit and MaxHistoryLimit bound GET /api/history.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// StatusFunc returns the current gantry status, ready for JSON encoding.
type StatusFunc func() any

// FrameFunc returns the last annotated camera frame as JPEG, or nil.
type FrameFunc func() []byte

// HistoryFunc lists up to limit journaled placements, newest first.
type HistoryFunc func(limit int) (any, error)

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Broadcaster *StatusBroadcaster
	Status      StatusFunc
	Frame       FrameFunc
	History     HistoryFunc
	Config      any
	staticFS    fs.FS
}

// NewHandlers creates handlers with the given dependencies. Frame and
// History may be nil; their endpoints then answer 503.
func NewHandlers(broadcaster *StatusBroadcaster, status StatusFunc, frame FrameFunc, history HistoryFunc, config any, staticFS fs.FS) *Handlers {
	return &Handlers{
		Broadcaster: broadcaster,
		Status:      status,
		Frame:       frame,
		History:     history,
		Config:      config,
		staticFS:    staticFS,
	}
}

// ParseLimit validates the limit query parameter. Empty means the default.
func ParseLimit(s string) (int, error) {
	if s == "" {
		return DefaultHistoryLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("limit must be an integer")
	}
	if n < 1 || n > MaxHistoryLimit {
		return 0, fmt.Errorf("limit must be between 1 and %d", MaxHistoryLimit)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HandleStatus returns the current status as JSON.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Status())
}

// HandleConfig returns the running configuration as JSON.
func (h *Handlers) HandleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Config)
}

// HandleFrame serves the last annotated frame.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	if h.Frame == nil {
		http.Error(w, "camera not configured", http.StatusServiceUnavailable)
		return
	}
	data := h.Frame()
	if len(data) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(data)
}

// HandleHistory lists journaled placements.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		http.Error(w, "history not configured", http.StatusServiceUnavailable)
		return
	}
	limit, err := ParseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	entries, err := h.History(limit)
	if err != nil {
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	writeJSON(w, entries)
}

// ServeIndex serves the main HTML page (root path only).
func (h *Handlers) ServeIndex(w http.ResponseWriter, r *http.Request) {
	data, err := fs.ReadFile(h.staticFS, "index.html")
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(data)
}

// HandleStatusStream handles GET /status/stream for SSE.
func (h *Handlers) HandleStatusStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx

	ch, unsub := h.Broadcaster.Subscribe()
	defer unsub()

	// Send initial comment to establish connection
	w.Write([]byte(": connected\n\n"))
	flusher.Flush()

	// Heartbeat while idle
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			w.Write([]byte("data: " + msg + "\n\n"))
			flusher.Flush()

		case <-ticker.C:
			w.Write([]byte(": heartbeat\n\n"))
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
