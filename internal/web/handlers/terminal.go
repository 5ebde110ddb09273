package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/facekiosk/facekiosk/internal/terminal"
)

// TerminalHandler exposes the kiosk terminal state over HTTP.
type TerminalHandler struct {
	controller *terminal.Controller
}

// NewTerminalHandler creates a terminal handler.
func NewTerminalHandler(controller *terminal.Controller) *TerminalHandler {
	return &TerminalHandler{controller: controller}
}

// Status handles GET /terminal/status requests.
func (h *TerminalHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.controller.Status())
}

// Events handles GET /terminal/events requests by streaming terminal events
// over Server-Sent Events until the client disconnects.
func (h *TerminalHandler) Events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "internal", "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := h.controller.Events()
	listener := events.AddListener()
	defer events.RemoveListener(listener)

	// The kiosk UI renders the current state before the first event arrives.
	sendSSEEvent(w, flusher, "status", h.controller.Status())

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-listener:
			if !ok {
				return
			}
			sendSSEEvent(w, flusher, event.Type, event)
		}
	}
}

// sendSSEEvent writes one Server-Sent Event frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\n", eventType)
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}
